package core

import (
	"context"
	"time"
)

// Placement selects where AddToQueue inserts tracks. Exactly one of the
// fields is honored: After, then Next, then the end of the queue.
type Placement struct {
	After int64
	Next  bool
	End   bool
}

// Controller is the surface the UI layer drives playback through.
type Controller interface {
	// Read-only projections
	Queue() *Queue
	NowPlaying() *QueueItem
	PlayerState() PlayerState

	// Starting playback
	PlayURI(ctx context.Context, uri string, shuffle bool, startKey string) error
	PlayQueueItem(ctx context.Context, itemID int64) error
	Restore(ctx context.Context) error

	// Queue edits
	AddToQueue(ctx context.Context, uris []string, at Placement) error
	RemoveFromQueue(ctx context.Context, itemID int64) error
	MoveTrack(ctx context.Context, itemIDs []int64, target DropTarget) error
	ToggleShuffle(ctx context.Context) error

	// Transport
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	TogglePlay()
	Seek(position time.Duration)
	SetVolume(volume int) error
	SetRepeat(ctx context.Context, mode RepeatMode) error

	// Reset discards the queue and stops playback.
	Reset()
}
