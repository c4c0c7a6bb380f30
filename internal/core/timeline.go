package core

import "time"

// PlaybackStatus is the state carried by a timeline report.
type PlaybackStatus string

const (
	StatusPlaying PlaybackStatus = "playing"
	StatusPaused  PlaybackStatus = "paused"
	StatusStopped PlaybackStatus = "stopped"
)

// TimelineEvent is an outbound progress report for one queue item.
type TimelineEvent struct {
	QueueItemID int64          `json:"queue_item_id"`
	Status      PlaybackStatus `json:"status"`
	Position    time.Duration  `json:"position"`
	Track       Track          `json:"track"`
}
