package core

import "time"

// Track represents a playable audio track in the remote library.
type Track struct {
	ID        int64         `json:"id"`
	Key       string        `json:"key"`
	Title     string        `json:"title"`
	Artist    string        `json:"artist"`
	Album     string        `json:"album"`
	Duration  time.Duration `json:"duration"`
	SourceKey string        `json:"source_key"`
	// GainDB is the track's replay-gain offset in decibels, when the server
	// has analysed it.
	GainDB *float64 `json:"gain_db,omitempty"`
}

// HasGain returns true if the track carries a replay-gain value.
func (t *Track) HasGain() bool {
	return t != nil && t.GainDB != nil
}

// QueueItem is a queue-scoped occurrence of a track. The same track may
// appear several times in one queue, each under its own item ID.
type QueueItem struct {
	ID    int64 `json:"id"`
	Track Track `json:"track"`
}
