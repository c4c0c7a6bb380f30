package playback

import (
	"github.com/tessro/spool/internal/audio"
	"github.com/tessro/spool/internal/core"
)

// BufferState names what the engine's two-slot buffer holds.
type BufferState int

const (
	BufferEmpty BufferState = iota
	BufferCurrentOnly
	BufferCurrentAndNext
)

func (s BufferState) String() string {
	switch s {
	case BufferCurrentOnly:
		return "current"
	case BufferCurrentAndNext:
		return "current+next"
	default:
		return "empty"
	}
}

// Slot is one loaded queue item and the source it was loaded from.
type Slot struct {
	Item core.QueueItem
	Src  string
}

func (s *Slot) same(o *Slot) bool {
	return s != nil && o != nil && s.Item.ID == o.Item.ID && s.Src == o.Src
}

// Buffer mirrors the engine's track list, which is always [current] or
// [current, next]. Every transition issues the engine calls it needs.
type Buffer struct {
	engine  audio.Engine
	current *Slot
	next    *Slot
}

// NewBuffer creates an empty buffer over engine.
func NewBuffer(engine audio.Engine) *Buffer {
	return &Buffer{engine: engine}
}

// State returns the buffer state.
func (b *Buffer) State() BufferState {
	switch {
	case b.current == nil:
		return BufferEmpty
	case b.next == nil:
		return BufferCurrentOnly
	default:
		return BufferCurrentAndNext
	}
}

// Current returns the playing slot, or nil.
func (b *Buffer) Current() *Slot { return b.current }

// Next returns the preloaded slot, or nil.
func (b *Buffer) Next() *Slot { return b.next }

// Load replaces the whole buffer. next may be nil.
func (b *Buffer) Load(current Slot, next *Slot) {
	b.engine.RemoveAllTracks()
	b.engine.AddTrack(current.Src)
	b.current = &current
	b.next = nil
	if next != nil {
		b.engine.AddTrack(next.Src)
		n := *next
		b.next = &n
	}
}

// SetNext makes next the preloaded slot without touching the current one.
// It reports whether the engine was changed.
func (b *Buffer) SetNext(next *Slot) bool {
	if next == nil {
		return b.ClearNext()
	}
	if b.current == nil || b.next.same(next) {
		return false
	}
	n := *next
	if b.next == nil {
		b.engine.AddTrack(n.Src)
	} else {
		b.engine.ReplaceTrack(1, n.Src)
	}
	b.next = &n
	return true
}

// ClearNext drops the preloaded slot.
func (b *Buffer) ClearNext() bool {
	if b.next == nil {
		return false
	}
	b.engine.RemoveTrack(1)
	b.next = nil
	return true
}

// Advance drops the current slot and promotes the next one. The engine is
// expected to be playing the next slot already.
func (b *Buffer) Advance() bool {
	if b.current == nil {
		return false
	}
	b.engine.RemoveTrack(0)
	b.current = b.next
	b.next = nil
	return true
}

// Clear empties the buffer and the engine.
func (b *Buffer) Clear() {
	b.engine.RemoveAllTracks()
	b.current = nil
	b.next = nil
}
