package cli

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tessro/spool/internal/core"
	"github.com/tessro/spool/internal/tui"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		args    []string
		want    []int64
		wantErr bool
	}{
		{[]string{"1001"}, []int64{1001}, false},
		{[]string{"1009,1004, 1006"}, []int64{1009, 1004, 1006}, false},
		{[]string{"1", "2,3"}, []int64{1, 2, 3}, false},
		{[]string{"abc"}, nil, true},
		{[]string{"0"}, nil, true},
		{[]string{","}, nil, true},
		{nil, nil, true},
	}

	for _, tt := range tests {
		got, err := parseIDs(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseIDs(%q) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("parseIDs(%q) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"90", 90 * time.Second, false},
		{"1:30", 90 * time.Second, false},
		{"0:05", 5 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"1:75", 0, true},
		{"-3", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		got, err := parsePosition(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePosition(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePosition(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParsePlacement(t *testing.T) {
	tests := []struct {
		args    []string
		want    core.Placement
		wantErr bool
	}{
		{nil, core.Placement{End: true}, false},
		{[]string{"end"}, core.Placement{End: true}, false},
		{[]string{"next"}, core.Placement{Next: true}, false},
		{[]string{"after", "1003"}, core.Placement{After: 1003}, false},
		{[]string{"after"}, core.Placement{}, true},
		{[]string{"next", "1"}, core.Placement{}, true},
		{[]string{"sideways"}, core.Placement{}, true},
	}

	for _, tt := range tests {
		got, err := parsePlacement(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePlacement(%q) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePlacement(%q) = %+v, want %+v", tt.args, got, tt.want)
		}
	}
}

func TestParseDropTarget(t *testing.T) {
	tests := []struct {
		args    []string
		want    core.DropTarget
		wantErr bool
	}{
		{[]string{"end"}, core.DropAtEnd(), false},
		{[]string{"before", "1002"}, core.DropBeforeItem(1002), false},
		{[]string{"after", "1001"}, core.DropAfterItem(1001), false},
		{[]string{"after"}, core.DropTarget{}, true},
		{[]string{"onto", "1001"}, core.DropTarget{}, true},
		{[]string{"before", "x"}, core.DropTarget{}, true},
	}

	for _, tt := range tests {
		got, err := parseDropTarget(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDropTarget(%q) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDropTarget(%q) = %+v, want %+v", tt.args, got, tt.want)
		}
	}
}

func TestParseVolume(t *testing.T) {
	for _, in := range []string{"0", "55", "100"} {
		if _, err := parseVolume(in); err != nil {
			t.Errorf("parseVolume(%q) unexpected error: %v", in, err)
		}
	}
	for _, in := range []string{"-1", "101", "loud"} {
		if _, err := parseVolume(in); err == nil {
			t.Errorf("parseVolume(%q) expected error", in)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{65 * time.Second, "1:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"Discipline and Punish", 10, "Discipl..."},
		{"ÄÖÜäöü", 5, "ÄÖ..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := TruncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	if got := FormatProgress(5*time.Second, 10*time.Second, 10); got != "━━━━━─────" {
		t.Errorf("half progress = %q", got)
	}
	if got := FormatProgress(time.Minute, 10*time.Second, 4); got != "━━━━" {
		t.Errorf("overflow progress = %q", got)
	}
	if got := FormatProgress(0, 0, 3); got != "───" {
		t.Errorf("unknown duration = %q", got)
	}
}

func TestRenderQueue(t *testing.T) {
	q := &core.Queue{ID: 7, SelectedItemID: 2, TotalCount: 3}
	for i, title := range []string{"One", "Two", "Three"} {
		id := int64(i + 1)
		q.Items = append(q.Items, core.QueueItem{ID: id, Track: core.Track{ID: id * 10, Title: title, Duration: time.Minute}})
	}

	var buf bytes.Buffer
	renderQueue(&buf, q, 2)
	out := buf.String()

	for _, want := range []string{"One", "Two", "● "} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered queue missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(strings.ToLower(out), "1 more") {
		t.Errorf("rendered queue missing overflow footer:\n%s", out)
	}
	if strings.Contains(out, "Three") {
		t.Errorf("rendered queue shows item past the limit:\n%s", out)
	}

	rows := queueRows(q, 0)
	if len(rows) != 3 || !rows[1].Selected || rows[0].Selected {
		t.Errorf("queueRows = %+v", rows)
	}
}

func TestConsoleRun(t *testing.T) {
	c := &console{}
	ctx := context.Background()

	out, err := c.run(ctx, "help")
	if err != nil || !strings.Contains(out, "Commands:") {
		t.Errorf("run(help) = %q, %v", out, err)
	}
	if _, err := c.run(ctx, "q"); !errors.Is(err, tui.ErrQuit) {
		t.Errorf("run(q) error = %v, want tui.ErrQuit", err)
	}
	if _, err := c.run(ctx, "frobnicate"); err == nil || errors.Is(err, tui.ErrQuit) {
		t.Errorf("run(frobnicate) error = %v", err)
	}
	if _, err := c.run(ctx, "v loud"); err == nil {
		t.Error("run(v loud) should reject the volume")
	}
}
