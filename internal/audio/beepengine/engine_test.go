package beepengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

const testRate = beep.SampleRate(1000)

// tone is a seekable stream of n full-scale samples.
type tone struct {
	n, pos int
	closed bool
}

func (t *tone) Stream(samples [][2]float64) (int, bool) {
	if t.pos >= t.n {
		return 0, false
	}
	k := min(len(samples), t.n-t.pos)
	for i := 0; i < k; i++ {
		samples[i] = [2]float64{1, 1}
	}
	t.pos += k
	return k, true
}

func (t *tone) Err() error { return nil }
func (t *tone) Len() int { return t.n }
func (t *tone) Position() int { return t.pos }
func (t *tone) Seek(p int) error { t.pos = p; return nil }
func (t *tone) Close() error { t.closed = true; return nil }

// recorder collects events as short strings.
type recorder struct {
	ch chan string
}

func newRecorder() *recorder { return &recorder{ch: make(chan string, 64)} }

func (r *recorder) OnLoad(i int, src string) { r.ch <- fmt.Sprintf("load:%d:%s", i, src) }
func (r *recorder) OnPlay(src string) { r.ch <- "play:" + src }
func (r *recorder) OnPause(src string) { r.ch <- "pause:" + src }
func (r *recorder) OnFinishedTrack(src string) { r.ch <- "finished:" + src }
func (r *recorder) OnFinishedAll() { r.ch <- "all" }
func (r *recorder) OnError(src string, err error) { r.ch <- "error:" + src }

func (r *recorder) expect(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		select {
		case got := <-r.ch:
			if got != w {
				t.Fatalf("event = %q, want %q", got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

type harness struct {
	mu  *sync.Mutex
	e   *Engine
	rec *recorder
}

func newHarness(t *testing.T, lengths map[string]int) *harness {
	t.Helper()
	opener := func(_ context.Context, src string) (beep.StreamSeekCloser, beep.Format, error) {
		n, ok := lengths[src]
		if !ok {
			return nil, beep.Format{}, errors.New("not found")
		}
		return &tone{n: n}, beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}, nil
	}
	mu := &sync.Mutex{}
	e := newEngine(mu, testRate, WithOpener(opener))
	rec := newRecorder()
	e.Subscribe(rec)
	t.Cleanup(func() { _ = e.Close() })
	return &harness{mu: mu, e: e, rec: rec}
}

// pull streams n samples the way the speaker does.
func (h *harness) pull(n int) [][2]float64 {
	buf := make([][2]float64, n)
	h.mu.Lock()
	h.e.Stream(buf)
	h.mu.Unlock()
	return buf
}

func count(samples [][2]float64, v float64) int {
	c := 0
	for _, s := range samples {
		if s[0] == v {
			c++
		}
	}
	return c
}

func TestGaplessAdvance(t *testing.T) {
	h := newHarness(t, map[string]int{"a": 10, "b": 10})
	h.e.AddTrack("a")
	h.rec.expect(t, "load:0:a")
	h.e.AddTrack("b")
	h.rec.expect(t, "load:1:b")

	h.e.Play()
	h.rec.expect(t, "play:a")

	out := h.pull(15)
	if got := count(out, 1); got != 15 {
		t.Errorf("got %d audible samples across the boundary, want 15", got)
	}
	h.rec.expect(t, "finished:a")
	if got := h.e.Position(); got != testRate.D(5) {
		t.Errorf("Position() = %v, want %v", got, testRate.D(5))
	}

	out = h.pull(10)
	if got := count(out, 1); got != 5 {
		t.Errorf("got %d audible samples, want 5", got)
	}
	h.rec.expect(t, "finished:b", "all")
	if h.e.IsPlaying() {
		t.Error("engine should stop after the last track")
	}
}

func TestPausedOutputsSilence(t *testing.T) {
	h := newHarness(t, map[string]int{"a": 10})
	h.e.AddTrack("a")
	h.rec.expect(t, "load:0:a")

	out := h.pull(5)
	if count(out, 0) != 5 || h.e.Position() != 0 {
		t.Error("a paused engine should output silence without advancing")
	}

	h.e.Play()
	h.pull(4)
	h.e.Pause()
	h.rec.expect(t, "play:a", "pause:a")
	h.pull(4)
	if got := h.e.Position(); got != testRate.D(4) {
		t.Errorf("Position() = %v, want %v", got, testRate.D(4))
	}
}

func TestTrackListEdits(t *testing.T) {
	h := newHarness(t, map[string]int{"a": 10, "b": 20, "c": 30})
	h.e.AddTrack("a")
	h.e.AddTrack("b")
	h.rec.expect(t, "load:0:a", "load:1:b")

	h.e.GotoTrack(1, false)
	if h.e.Duration() != testRate.D(20) {
		t.Fatalf("Duration() = %v, want b's", h.e.Duration())
	}

	h.e.InsertTrack(0, "c")
	h.rec.expect(t, "load:0:c")
	if got := h.e.Tracks(); fmt.Sprint(got) != "[c a b]" {
		t.Errorf("Tracks() = %v", got)
	}
	if h.e.Duration() != testRate.D(20) {
		t.Error("insert before the current track should not change it")
	}

	h.e.RemoveTrack(0)
	h.e.RemoveTrack(0)
	if got := h.e.Tracks(); fmt.Sprint(got) != "[b]" {
		t.Errorf("Tracks() = %v", got)
	}
	if h.e.Duration() != testRate.D(20) {
		t.Error("removing earlier tracks should not change the current one")
	}

	h.e.AddTrack("a")
	h.rec.expect(t, "load:1:a")
	h.e.ReplaceTrack(1, "c")
	h.rec.expect(t, "load:1:c")

	h.e.RemoveAllTracks()
	if len(h.e.Tracks()) != 0 || h.e.IsPlaying() {
		t.Error("RemoveAllTracks should empty the engine")
	}
}

func TestGotoTrackRewinds(t *testing.T) {
	h := newHarness(t, map[string]int{"a": 10, "b": 10})
	h.e.AddTrack("a")
	h.e.AddTrack("b")
	h.rec.expect(t, "load:0:a", "load:1:b")

	h.e.GotoTrack(1, true)
	h.rec.expect(t, "play:b")
	h.pull(6)
	h.e.GotoTrack(1, true)
	if h.e.Position() != 0 {
		t.Errorf("Position() = %v, want 0", h.e.Position())
	}
}

func TestVolume(t *testing.T) {
	h := newHarness(t, map[string]int{"a": 100})
	h.e.AddTrack("a")
	h.rec.expect(t, "load:0:a")
	h.e.Play()

	h.e.SetVolume(0.5)
	if got := count(h.pull(10), 0.5); got != 10 {
		t.Errorf("got %d half-scale samples, want 10", got)
	}

	h.e.SetVolume(0)
	if got := count(h.pull(10), 0); got != 10 {
		t.Errorf("got %d silent samples, want 10", got)
	}
	if h.e.Position() != testRate.D(20) {
		t.Error("a muted track should keep playing")
	}
}

func TestSeek(t *testing.T) {
	h := newHarness(t, map[string]int{"a": 100})
	h.e.AddTrack("a")
	h.rec.expect(t, "load:0:a")

	h.e.Seek(30 * time.Millisecond)
	if got := h.e.Position(); got != 30*time.Millisecond {
		t.Errorf("Position() = %v, want 30ms", got)
	}
	h.e.Seek(time.Hour)
	if got := h.e.Position(); got != testRate.D(99) {
		t.Errorf("seek past the end: Position() = %v", got)
	}
}

func TestLoadError(t *testing.T) {
	h := newHarness(t, map[string]int{})
	h.e.AddTrack("missing")
	h.rec.expect(t, "error:missing")
}

func TestClose(t *testing.T) {
	h := newHarness(t, map[string]int{"a": 10})
	h.e.AddTrack("a")
	h.rec.expect(t, "load:0:a")

	if err := h.e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.e.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if len(h.e.Tracks()) != 0 {
		t.Error("Close should release tracks")
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		src, contentType string
		want             string
		wantErr          bool
	}{
		{"http://x/a.mp3", "", "mp3", false},
		{"http://x/a.FLAC?token=1", "", "flac", false},
		{"http://x/stream", "audio/mpeg", "mp3", false},
		{"http://x/stream", "audio/x-wav; charset=binary", "wav", false},
		{"http://x/a.wav", "application/octet-stream", "wav", false},
		{"http://x/a.ogg", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.src+"|"+tt.contentType, func(t *testing.T) {
			got, err := formatOf(tt.src, tt.contentType)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("formatOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPOpener(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	format := beep.Format{SampleRate: 8000, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, beep.Silence(800), format); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/track" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	open := HTTPOpener(srv.Client())
	stream, got, err := open(context.Background(), srv.URL+"/track")
	if err != nil {
		t.Fatalf("open error = %v", err)
	}
	defer func() { _ = stream.Close() }()
	if got.SampleRate != 8000 || stream.Len() != 800 {
		t.Errorf("format = %+v, len = %d", got, stream.Len())
	}

	if _, _, err := open(context.Background(), srv.URL+"/missing.mp3"); err == nil {
		t.Error("expected an error for a 404")
	}
}

func TestEngineResamples(t *testing.T) {
	mu := &sync.Mutex{}
	opener := func(context.Context, string) (beep.StreamSeekCloser, beep.Format, error) {
		return &tone{n: 1000}, beep.Format{SampleRate: 500, NumChannels: 2, Precision: 2}, nil
	}
	e := newEngine(mu, testRate, WithOpener(opener))
	rec := newRecorder()
	e.Subscribe(rec)
	defer func() { _ = e.Close() }()

	e.AddTrack("slow")
	rec.expect(t, "load:0:slow")
	e.Play()

	buf := make([][2]float64, 100)
	mu.Lock()
	e.Stream(buf)
	mu.Unlock()
	if pos := e.Position(); pos < 40*time.Millisecond || pos > 200*time.Millisecond {
		t.Errorf("100 output samples at twice the source rate should consume about 50 source samples, position %v", pos)
	}
}
