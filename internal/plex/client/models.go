package client

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/tessro/spool/internal/core"
)

// Envelope is the JSON wrapper around every response.
type Envelope struct {
	MediaContainer MediaContainer `json:"MediaContainer"`
}

// MediaContainer carries a play queue window.
type MediaContainer struct {
	Size                    int        `json:"size"`
	PlayQueueID             int64      `json:"playQueueID"`
	PlayQueueSelectedItemID int64      `json:"playQueueSelectedItemID"`
	PlayQueueShuffled       bool       `json:"playQueueShuffled"`
	PlayQueueSourceURI      string     `json:"playQueueSourceURI"`
	PlayQueueTotalCount     int        `json:"playQueueTotalCount"`
	PlayQueueVersion        int        `json:"playQueueVersion"`
	AllowShuffle            *bool      `json:"allowShuffle,omitempty"`
	Metadata                []Metadata `json:"Metadata"`
}

// Metadata is one queue item together with its track metadata.
type Metadata struct {
	PlayQueueItemID  int64   `json:"playQueueItemID"`
	RatingKey        string  `json:"ratingKey"`
	Key              string  `json:"key"`
	Type             string  `json:"type"`
	Title            string  `json:"title"`
	GrandparentTitle string  `json:"grandparentTitle"`
	ParentTitle      string  `json:"parentTitle"`
	OriginalTitle    string  `json:"originalTitle"`
	Duration         int64   `json:"duration"`
	Media            []Media `json:"Media"`
}

// Media is one encoding of a track.
type Media struct {
	ID       int64  `json:"id"`
	Duration int64  `json:"duration"`
	Codec    string `json:"audioCodec"`
	Part     []Part `json:"Part"`
}

// Part is a playable file.
type Part struct {
	ID     int64    `json:"id"`
	Key    string   `json:"key"`
	Stream []Stream `json:"Stream"`
}

// Stream describes one elementary stream inside a part.
type Stream struct {
	StreamType int        `json:"streamType"`
	Gain       *FlexFloat `json:"gain,omitempty"`
	AlbumGain  *FlexFloat `json:"albumGain,omitempty"`
}

// audioStreamType is the stream type used for audio tracks.
const audioStreamType = 2

// FlexFloat decodes numbers the server sometimes sends as strings.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f FlexFloat) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(f))
}

// convertQueue converts a media container to a core queue.
func convertQueue(mc *MediaContainer) *core.Queue {
	if mc == nil {
		return nil
	}

	q := &core.Queue{
		ID:             mc.PlayQueueID,
		SelectedItemID: mc.PlayQueueSelectedItemID,
		Shuffled:       mc.PlayQueueShuffled,
		AllowShuffle:   true,
		TotalCount:     mc.PlayQueueTotalCount,
		Version:        mc.PlayQueueVersion,
		SourceURI:      mc.PlayQueueSourceURI,
		Items:          make([]core.QueueItem, 0, len(mc.Metadata)),
	}
	if mc.AllowShuffle != nil {
		q.AllowShuffle = *mc.AllowShuffle
	}

	for i := range mc.Metadata {
		m := &mc.Metadata[i]
		q.Items = append(q.Items, core.QueueItem{
			ID:    m.PlayQueueItemID,
			Track: *convertTrack(m),
		})
	}

	return q
}

// convertTrack converts item metadata to a core track.
func convertTrack(m *Metadata) *core.Track {
	if m == nil {
		return nil
	}

	id, _ := strconv.ParseInt(m.RatingKey, 10, 64)
	artist := m.OriginalTitle
	if artist == "" {
		artist = m.GrandparentTitle
	}

	t := &core.Track{
		ID:       id,
		Key:      m.Key,
		Title:    m.Title,
		Artist:   artist,
		Album:    m.ParentTitle,
		Duration: time.Duration(m.Duration) * time.Millisecond,
	}

	if len(m.Media) > 0 && len(m.Media[0].Part) > 0 {
		part := m.Media[0].Part[0]
		t.SourceKey = part.Key
		for _, s := range part.Stream {
			if s.StreamType == audioStreamType && s.Gain != nil {
				g := float64(*s.Gain)
				t.GainDB = &g
				break
			}
		}
	}

	return t
}
