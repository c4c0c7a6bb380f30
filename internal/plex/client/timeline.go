package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/tessro/spool/internal/core"
)

// ReportTimeline sends one playback progress report. Reports are not
// retried.
func (c *Client) ReportTimeline(ctx context.Context, ev core.TimelineEvent) error {
	params := url.Values{}
	params.Set("ratingKey", strconv.FormatInt(ev.Track.ID, 10))
	params.Set("key", ev.Track.Key)
	params.Set("state", string(ev.Status))
	params.Set("time", strconv.FormatInt(ev.Position.Milliseconds(), 10))
	params.Set("duration", strconv.FormatInt(ev.Track.Duration.Milliseconds(), 10))
	params.Set("playQueueItemID", formatID(ev.QueueItemID))

	return c.send(ctx, "GET", "/:/timeline", params, nil)
}

// StreamURL returns the absolute URL of a track's audio part.
func (c *Client) StreamURL(t core.Track) string {
	if t.SourceKey == "" {
		return ""
	}
	params := url.Values{}
	if c.token != "" {
		params.Set("X-Plex-Token", c.token)
	}
	if c.clientID != "" {
		params.Set("X-Plex-Client-Identifier", c.clientID)
	}
	return c.baseURL + BuildURL(t.SourceKey, params)
}
