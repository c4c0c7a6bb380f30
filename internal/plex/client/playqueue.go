package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tessro/spool/internal/core"
)

// FetchOptions configures a windowed queue fetch.
type FetchOptions struct {
	Window int
	Center int64 // item ID; 0 centers on the selection
	Repeat core.RepeatMode
}

// CreateQueue materializes a play queue from a library URI.
func (c *Client) CreateQueue(ctx context.Context, sourceURI string, shuffle bool, startKey string, repeat core.RepeatMode) (*core.Queue, error) {
	if sourceURI == "" {
		return nil, fmt.Errorf("source uri cannot be empty")
	}

	params := url.Values{}
	params.Set("type", "audio")
	params.Set("uri", sourceURI)
	params.Set("shuffle", boolParam(shuffle))
	params.Set("repeat", strconv.Itoa(int(repeat)))
	params.Set("continuous", "0")
	if startKey != "" {
		params.Set("key", startKey)
	}

	return c.queueCall(ctx, "POST", "/playQueues", params, false)
}

// FetchQueue returns a window of the queue around opts.Center.
func (c *Client) FetchQueue(ctx context.Context, id int64, opts FetchOptions) (*core.Queue, error) {
	params := url.Values{}
	if opts.Window > 0 {
		params.Set("window", strconv.Itoa(opts.Window))
	}
	if opts.Center != 0 {
		params.Set("center", formatID(opts.Center))
	}
	params.Set("repeat", strconv.Itoa(int(opts.Repeat)))
	params.Set("includeBefore", "1")
	params.Set("includeAfter", "1")

	return c.queueCall(ctx, "GET", "/playQueues/"+formatID(id), params, true)
}

// AddItems inserts tracks into the queue. Only one placement is honored:
// After, then Next, then the end of the queue.
func (c *Client) AddItems(ctx context.Context, id int64, uris []string, at core.Placement) (*core.Queue, error) {
	if len(uris) == 0 {
		return nil, fmt.Errorf("no items to add")
	}

	params := url.Values{}
	for _, u := range uris {
		params.Add("uri", u)
	}
	switch {
	case at.After != 0:
		params.Set("after", formatID(at.After))
	case at.Next:
		params.Set("next", "1")
	default:
		params.Set("end", "1")
	}

	return c.queueCall(ctx, "PUT", "/playQueues/"+formatID(id), params, false)
}

// RemoveItem deletes one item from the queue.
func (c *Client) RemoveItem(ctx context.Context, id, itemID int64) (*core.Queue, error) {
	path := fmt.Sprintf("/playQueues/%d/items/%d", id, itemID)
	return c.queueCall(ctx, "DELETE", path, nil, false)
}

// MoveItem places itemID immediately after afterID. An afterID of 0 moves
// the item to the front of the queue.
func (c *Client) MoveItem(ctx context.Context, id, itemID, afterID int64) (*core.Queue, error) {
	params := url.Values{}
	if afterID != 0 {
		params.Set("after", formatID(afterID))
	}
	path := fmt.Sprintf("/playQueues/%d/items/%d/move", id, itemID)
	return c.queueCall(ctx, "PUT", path, params, false)
}

// Shuffle shuffles the items after the selection.
func (c *Client) Shuffle(ctx context.Context, id int64) (*core.Queue, error) {
	return c.queueCall(ctx, "PUT", fmt.Sprintf("/playQueues/%d/shuffle", id), nil, false)
}

// Unshuffle restores source order.
func (c *Client) Unshuffle(ctx context.Context, id int64) (*core.Queue, error) {
	return c.queueCall(ctx, "PUT", fmt.Sprintf("/playQueues/%d/unshuffle", id), nil, false)
}

// ToggleShuffle shuffles or unshuffles the queue.
func (c *Client) ToggleShuffle(ctx context.Context, id int64, on bool) (*core.Queue, error) {
	if on {
		return c.Shuffle(ctx, id)
	}
	return c.Unshuffle(ctx, id)
}

func (c *Client) queueCall(ctx context.Context, method, path string, params url.Values, idempotent bool) (*core.Queue, error) {
	var env Envelope
	var err error
	if idempotent {
		err = c.get(ctx, path, params, &env)
	} else {
		err = c.send(ctx, method, path, params, &env)
	}
	if err != nil {
		return nil, err
	}
	return convertQueue(&env.MediaContainer), nil
}
