package core

import (
	"slices"
	"testing"
)

func testQueue() *Queue {
	return &Queue{
		ID: 7,
		Items: []QueueItem{
			{ID: 101, Track: Track{ID: 1, Title: "One"}},
			{ID: 102, Track: Track{ID: 2, Title: "Two"}},
			{ID: 103, Track: Track{ID: 1, Title: "One"}},
		},
		SelectedItemID: 102,
	}
}

func TestQueueSelected(t *testing.T) {
	q := testQueue()
	if got := q.Selected(); got == nil || got.ID != 102 {
		t.Fatalf("Selected() = %v, want item 102", got)
	}
	if got := q.SelectedIndex(); got != 1 {
		t.Errorf("SelectedIndex() = %d, want 1", got)
	}

	q.SelectedItemID = 999
	if got := q.Selected(); got != nil {
		t.Errorf("Selected() with dangling id = %v, want nil", got)
	}
	if got := q.SelectedIndex(); got != -1 {
		t.Errorf("SelectedIndex() with dangling id = %d, want -1", got)
	}
}

func TestQueueNilSafe(t *testing.T) {
	var q *Queue
	if q.Selected() != nil || q.Next(RepeatAll) != nil || q.Len() != 0 || q.IsActive() {
		t.Error("nil queue should behave as empty")
	}
	if q.IndexOf(1) != -1 {
		t.Error("IndexOf on nil queue should be -1")
	}
}

func TestQueueAfter(t *testing.T) {
	tests := []struct {
		name   string
		item   int64
		repeat RepeatMode
		want   int64
	}{
		{"middle", 102, RepeatOff, 103},
		{"last no repeat", 103, RepeatOff, 0},
		{"last repeat all wraps", 103, RepeatAll, 101},
		{"repeat one", 102, RepeatOne, 102},
		{"missing", 555, RepeatAll, 0},
	}

	q := testQueue()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := q.After(tt.item, tt.repeat)
			var id int64
			if got != nil {
				id = got.ID
			}
			if id != tt.want {
				t.Errorf("After(%d, %v) = %d, want %d", tt.item, tt.repeat, id, tt.want)
			}
		})
	}
}

func TestQueueBeforeAndUpcoming(t *testing.T) {
	q := testQueue()
	if got := q.Before(101); got != nil {
		t.Errorf("Before(first) = %v, want nil", got)
	}
	if got := q.Before(103); got == nil || got.ID != 102 {
		t.Errorf("Before(103) = %v, want 102", got)
	}
	up := q.Upcoming()
	if len(up) != 1 || up[0].ID != 103 {
		t.Errorf("Upcoming() = %v, want [103]", up)
	}
}

func TestQueueClone(t *testing.T) {
	q := testQueue()
	c := q.Clone()
	c.Items[0].ID = 1
	if q.Items[0].ID != 101 {
		t.Error("Clone shares item storage with original")
	}
}

func TestParseRepeatMode(t *testing.T) {
	for in, want := range map[string]RepeatMode{"": RepeatOff, "off": RepeatOff, "one": RepeatOne, "all": RepeatAll} {
		got, err := ParseRepeatMode(in)
		if err != nil || got != want {
			t.Errorf("ParseRepeatMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseRepeatMode("sometimes"); err == nil {
		t.Error("expected error for invalid mode")
	}
}

func TestRepeatModeCycle(t *testing.T) {
	m := RepeatOff
	var seen []RepeatMode
	for range 3 {
		m = m.Cycle()
		seen = append(seen, m)
	}
	want := []RepeatMode{RepeatAll, RepeatOne, RepeatOff}
	if !slices.Equal(seen, want) {
		t.Errorf("repeat cycle = %v, want %v", seen, want)
	}
}
