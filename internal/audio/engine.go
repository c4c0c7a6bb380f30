// Package audio defines the gapless playback engine contract.
//
// An engine holds an ordered list of loaded tracks and plays them back to
// back. Tracks are addressed by their index in that list and identified in
// events by the source URL they were added with. Handlers registered with
// Subscribe are never invoked synchronously from inside an Engine method
// call, so a handler may call back into the engine or into code that holds
// locks while driving it.
package audio

import "time"

// Engine is a gapless audio engine.
type Engine interface {
	// Track list
	AddTrack(src string)
	InsertTrack(index int, src string)
	RemoveTrack(index int)
	ReplaceTrack(index int, src string)
	RemoveAllTracks()
	GotoTrack(index int, play bool)
	Tracks() []string

	// Transport
	Play()
	Pause()
	Stop()
	Seek(position time.Duration)
	SetVolume(gain float64)

	// State queries
	Position() time.Duration
	Duration() time.Duration
	IsPlaying() bool

	Subscribe(h EventHandler)
	Close() error
}

// EventHandler receives engine lifecycle callbacks.
type EventHandler interface {
	OnLoad(index int, src string)
	OnPlay(src string)
	OnPause(src string)
	// OnFinishedTrack fires when a track plays to its end. If another track
	// follows it in the list, the engine is already playing that one.
	OnFinishedTrack(src string)
	// OnFinishedAll fires when the last track in the list finishes.
	OnFinishedAll()
	OnError(src string, err error)
}

// NopHandler implements EventHandler with no-ops. Embed it to handle only
// some events.
type NopHandler struct{}

func (NopHandler) OnLoad(int, string)     {}
func (NopHandler) OnPlay(string)          {}
func (NopHandler) OnPause(string)         {}
func (NopHandler) OnFinishedTrack(string) {}
func (NopHandler) OnFinishedAll()         {}
func (NopHandler) OnError(string, error)  {}
