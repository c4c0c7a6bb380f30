// Package tail turns polled session state into a stream of playback events.
package tail

import (
	"context"
	"time"

	"github.com/tessro/spool/internal/core"
	"github.com/tessro/spool/internal/settings"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventTrackChange EventType = iota
	EventTrackComplete
	EventTrackSkip
	EventPause
	EventResume
	EventVolumeChange
	EventRepeatChange
	EventQueueEnd
)

// Snapshot is the state compared between polls.
type Snapshot struct {
	Item   *core.QueueItem
	State  core.PlayerState
	Volume int
	Repeat core.RepeatMode
}

// HasTrack reports whether something is loaded.
func (s *Snapshot) HasTrack() bool {
	return s != nil && s.Item != nil
}

// Event represents a playback state change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *Snapshot
	Current   *Snapshot
}

// Source is polled for state. A session satisfies it.
type Source interface {
	NowPlaying() *core.QueueItem
	PlayerState() core.PlayerState
	Settings() settings.Settings
}

// Take reads a snapshot from src.
func Take(src Source) *Snapshot {
	st := src.Settings()
	return &Snapshot{
		Item:   src.NowPlaying(),
		State:  src.PlayerState(),
		Volume: st.Volume,
		Repeat: st.Repeat,
	}
}

// Watcher polls a source for state changes and emits events.
type Watcher struct {
	source   Source
	interval time.Duration
	events   chan Event
	done     chan struct{}
}

// NewWatcher creates a new state watcher.
func NewWatcher(source Source, interval time.Duration) *Watcher {
	if interval == 0 {
		interval = time.Second
	}
	return &Watcher{
		source:   source,
		interval: interval,
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
	}
}

// Events returns the channel of playback events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start polls until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.events)

	prev := Take(w.source)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-ticker.C:
			curr := Take(w.source)
			for _, e := range Diff(prev, curr, time.Now()) {
				select {
				case w.events <- e:
				default:
					// Drop event if channel is full
				}
			}
			prev = curr
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.done)
}

// Diff compares two snapshots and returns the detected events.
func Diff(prev, curr *Snapshot, now time.Time) []Event {
	if curr == nil {
		return nil
	}

	event := func(t EventType) Event {
		return Event{Type: t, Timestamp: now, Previous: prev, Current: curr}
	}

	if prev == nil {
		if curr.HasTrack() {
			return []Event{event(EventTrackChange)}
		}
		return nil
	}

	var events []Event

	if itemChanged(prev, curr) {
		if prev.HasTrack() {
			if wasCompleted(prev) {
				events = append(events, event(EventTrackComplete))
			} else {
				events = append(events, event(EventTrackSkip))
			}
		}
		if curr.HasTrack() {
			events = append(events, event(EventTrackChange))
		} else {
			events = append(events, event(EventQueueEnd))
		}
	}

	if prev.State.IsPlaying && !curr.State.IsPlaying && curr.HasTrack() {
		events = append(events, event(EventPause))
	} else if !prev.State.IsPlaying && curr.State.IsPlaying && prev.HasTrack() {
		events = append(events, event(EventResume))
	}

	if prev.Volume != curr.Volume {
		events = append(events, event(EventVolumeChange))
	}
	if prev.Repeat != curr.Repeat {
		events = append(events, event(EventRepeatChange))
	}

	return events
}

// itemChanged compares queue item IDs, so the same track queued twice
// still counts as a change.
func itemChanged(prev, curr *Snapshot) bool {
	if prev.Item == nil && curr.Item == nil {
		return false
	}
	if prev.Item == nil || curr.Item == nil {
		return true
	}
	return prev.Item.ID != curr.Item.ID
}

// wasCompleted returns true if the track likely completed naturally.
func wasCompleted(s *Snapshot) bool {
	d := s.State.Duration
	if d == 0 && s.Item != nil {
		d = s.Item.Track.Duration
	}
	if d == 0 {
		return false
	}
	// Consider completed if progress is >= 95% of duration
	threshold := float64(d) * 0.95
	return float64(s.State.Position) >= threshold
}
