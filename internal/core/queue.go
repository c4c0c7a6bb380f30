package core

import "github.com/samber/lo"

// NoQueue is the queue ID used when no queue is active.
const NoQueue int64 = 0

// Queue represents a window of the remote play queue.
type Queue struct {
	ID             int64       `json:"id"`
	Items          []QueueItem `json:"items"`
	SelectedItemID int64       `json:"selected_item_id"`
	Shuffled       bool        `json:"shuffled"`
	AllowShuffle   bool        `json:"allow_shuffle"`
	TotalCount     int         `json:"total_count"`
	Version        int         `json:"version"`
	SourceURI      string      `json:"source_uri"`
}

// IsActive returns true if q refers to a live remote queue.
func (q *Queue) IsActive() bool {
	return q != nil && q.ID != NoQueue
}

// IndexOf returns the position of the item with the given ID, or -1.
func (q *Queue) IndexOf(itemID int64) int {
	if q == nil {
		return -1
	}
	_, idx, ok := lo.FindIndexOf(q.Items, func(it QueueItem) bool {
		return it.ID == itemID
	})
	if !ok {
		return -1
	}
	return idx
}

// Item returns the item with the given ID, or nil.
func (q *Queue) Item(itemID int64) *QueueItem {
	idx := q.IndexOf(itemID)
	if idx < 0 {
		return nil
	}
	return &q.Items[idx]
}

// Selected returns the currently selected item, or nil if the selection
// does not resolve to an item in the window.
func (q *Queue) Selected() *QueueItem {
	if q == nil || q.SelectedItemID == 0 {
		return nil
	}
	return q.Item(q.SelectedItemID)
}

// SelectedIndex returns the index of the selected item, or -1.
func (q *Queue) SelectedIndex() int {
	if q == nil || q.SelectedItemID == 0 {
		return -1
	}
	return q.IndexOf(q.SelectedItemID)
}

// After returns the item that plays after itemID under the given repeat
// mode, or nil if playback would stop.
func (q *Queue) After(itemID int64, repeat RepeatMode) *QueueItem {
	idx := q.IndexOf(itemID)
	if idx < 0 {
		return nil
	}
	switch {
	case repeat == RepeatOne:
		return &q.Items[idx]
	case idx+1 < len(q.Items):
		return &q.Items[idx+1]
	case repeat == RepeatAll:
		return &q.Items[0]
	}
	return nil
}

// Before returns the item preceding itemID, or nil.
func (q *Queue) Before(itemID int64) *QueueItem {
	idx := q.IndexOf(itemID)
	if idx <= 0 {
		return nil
	}
	return &q.Items[idx-1]
}

// Next returns the successor of the selected item.
func (q *Queue) Next(repeat RepeatMode) *QueueItem {
	if q == nil {
		return nil
	}
	return q.After(q.SelectedItemID, repeat)
}

// Upcoming returns items after the selected one.
func (q *Queue) Upcoming() []QueueItem {
	idx := q.SelectedIndex()
	if idx < 0 || idx >= len(q.Items)-1 {
		return nil
	}
	return q.Items[idx+1:]
}

// Last returns the last item in the window, or nil.
func (q *Queue) Last() *QueueItem {
	if q.Len() == 0 {
		return nil
	}
	return &q.Items[len(q.Items)-1]
}

// Len returns the number of items in the window.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Items)
}

// IsEmpty returns true if the queue has no items.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// ItemIDs returns the item IDs in order.
func (q *Queue) ItemIDs() []int64 {
	if q == nil {
		return nil
	}
	return lo.Map(q.Items, func(it QueueItem, _ int) int64 { return it.ID })
}

// Clone returns a deep copy of q.
func (q *Queue) Clone() *Queue {
	if q == nil {
		return nil
	}
	c := *q
	c.Items = make([]QueueItem, len(q.Items))
	copy(c.Items, q.Items)
	return &c
}
