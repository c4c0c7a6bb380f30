// Package testsupport holds fakes shared by package tests.
package testsupport

import (
	"sync"
	"time"

	"github.com/tessro/spool/internal/audio"
)

// EngineCall records one mutating call made on a FakeEngine.
type EngineCall struct {
	Op    string
	Index int
	Src   string
}

// FakeEngine is an in-memory audio.Engine. It never fires events on its
// own; tests drive callbacks with the Emit* and Finish helpers.
type FakeEngine struct {
	mu       sync.Mutex
	tracks   []string
	current  int
	playing  bool
	position time.Duration
	duration time.Duration
	gain     float64
	calls    []EngineCall
	handler  audio.EventHandler
	closed   bool
}

var _ audio.Engine = (*FakeEngine)(nil)

// NewFakeEngine creates an empty fake engine.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{gain: 1}
}

func (e *FakeEngine) record(op string, index int, src string) {
	e.calls = append(e.calls, EngineCall{Op: op, Index: index, Src: src})
}

func (e *FakeEngine) AddTrack(src string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracks = append(e.tracks, src)
	e.record("add", len(e.tracks)-1, src)
}

func (e *FakeEngine) InsertTrack(index int, src string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index > len(e.tracks) {
		index = len(e.tracks)
	}
	e.tracks = append(e.tracks[:index], append([]string{src}, e.tracks[index:]...)...)
	if index <= e.current && len(e.tracks) > 1 {
		e.current++
	}
	e.record("insert", index, src)
}

func (e *FakeEngine) RemoveTrack(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.tracks) {
		return
	}
	e.tracks = append(e.tracks[:index], e.tracks[index+1:]...)
	if index < e.current {
		e.current--
	}
	e.record("remove", index, "")
}

func (e *FakeEngine) ReplaceTrack(index int, src string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.tracks) {
		return
	}
	e.tracks[index] = src
	e.record("replace", index, src)
}

func (e *FakeEngine) RemoveAllTracks() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracks = nil
	e.current = 0
	e.playing = false
	e.position = 0
	e.record("clear", 0, "")
}

func (e *FakeEngine) GotoTrack(index int, play bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = index
	e.position = 0
	e.playing = play
	e.record("goto", index, "")
}

func (e *FakeEngine) Tracks() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.tracks))
	copy(out, e.tracks)
	return out
}

func (e *FakeEngine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = true
}

func (e *FakeEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
}

func (e *FakeEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
	e.position = 0
}

func (e *FakeEngine) Seek(position time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = position
}

func (e *FakeEngine) SetVolume(gain float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gain = gain
}

func (e *FakeEngine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *FakeEngine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *FakeEngine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *FakeEngine) Subscribe(h audio.EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

func (e *FakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Gain returns the last gain passed to SetVolume.
func (e *FakeEngine) Gain() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gain
}

// Current returns the index of the playing track.
func (e *FakeEngine) Current() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Calls returns the recorded track-list mutations.
func (e *FakeEngine) Calls() []EngineCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]EngineCall, len(e.calls))
	copy(out, e.calls)
	return out
}

// ResetCalls forgets recorded mutations.
func (e *FakeEngine) ResetCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

// SetPosition moves the fake playhead.
func (e *FakeEngine) SetPosition(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = d
}

// Closed reports whether Close was called.
func (e *FakeEngine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Finish simulates the playing track reaching its end: the engine moves
// on to the following track, fires OnFinishedTrack and, if nothing
// follows, OnFinishedAll.
func (e *FakeEngine) Finish() {
	e.mu.Lock()
	h := e.handler
	if e.current >= len(e.tracks) {
		e.mu.Unlock()
		return
	}
	finished := e.tracks[e.current]
	e.current++
	e.position = 0
	last := e.current >= len(e.tracks)
	if last {
		e.playing = false
	}
	e.mu.Unlock()

	if h == nil {
		return
	}
	h.OnFinishedTrack(finished)
	if last {
		h.OnFinishedAll()
	}
}

// EmitFinishedAll fires OnFinishedAll without touching the track list.
func (e *FakeEngine) EmitFinishedAll() {
	if h := e.getHandler(); h != nil {
		h.OnFinishedAll()
	}
}

// EmitPlay fires OnPlay for the current track.
func (e *FakeEngine) EmitPlay() {
	e.mu.Lock()
	e.playing = true
	src := e.currentSrcLocked()
	h := e.handler
	e.mu.Unlock()
	if h != nil {
		h.OnPlay(src)
	}
}

// EmitPause fires OnPause for the current track.
func (e *FakeEngine) EmitPause() {
	e.mu.Lock()
	e.playing = false
	src := e.currentSrcLocked()
	h := e.handler
	e.mu.Unlock()
	if h != nil {
		h.OnPause(src)
	}
}

// EmitError fires OnError for src.
func (e *FakeEngine) EmitError(src string, err error) {
	if h := e.getHandler(); h != nil {
		h.OnError(src, err)
	}
}

func (e *FakeEngine) getHandler() audio.EventHandler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handler
}

func (e *FakeEngine) currentSrcLocked() string {
	if e.current < len(e.tracks) {
		return e.tracks[e.current]
	}
	return ""
}
