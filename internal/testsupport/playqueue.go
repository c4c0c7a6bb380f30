package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// LibraryTrack is a track known to the fake server.
type LibraryTrack struct {
	RatingKey  int64
	Title      string
	Artist     string
	Album      string
	DurationMs int64
	Gain       *float64
}

// Call records one request received by the fake server.
type Call struct {
	Method string
	Path   string
	Query  url.Values
}

type fakeItem struct {
	id    int64
	track LibraryTrack
}

type fakeQueue struct {
	id        int64
	items     []fakeItem
	unshuffle []fakeItem
	selected  int64
	shuffled  bool
	sourceURI string
	version   int
}

type failure struct {
	method string
	prefix string
	status int
	times  int
}

// PlayQueueServer is an in-memory media server implementing the play
// queue and timeline endpoints.
type PlayQueueServer struct {
	*httptest.Server

	mu         sync.Mutex
	library    map[string][]LibraryTrack
	queues     map[int64]*fakeQueue
	nextQueue  int64
	nextItem   int64
	calls      []Call
	timeline   []url.Values
	failures   []*failure
	selectOnTL bool
}

// NewPlayQueueServer starts a fake server. Call Close when done.
func NewPlayQueueServer() *PlayQueueServer {
	s := &PlayQueueServer{
		library:    make(map[string][]LibraryTrack),
		queues:     make(map[int64]*fakeQueue),
		nextQueue:  100,
		nextItem:   1000,
		selectOnTL: true,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// AddLibrary registers the tracks a URI expands to.
func (s *PlayQueueServer) AddLibrary(uri string, tracks ...LibraryTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.library[uri] = tracks
}

// AddAlbum registers n tracks under uri with rating keys starting at first.
func (s *PlayQueueServer) AddAlbum(uri string, first int64, n int) []LibraryTrack {
	tracks := make([]LibraryTrack, n)
	for i := range tracks {
		rk := first + int64(i)
		tracks[i] = LibraryTrack{
			RatingKey:  rk,
			Title:      fmt.Sprintf("Track %d", rk),
			Artist:     "Artist",
			Album:      uri,
			DurationMs: 180000,
		}
	}
	s.AddLibrary(uri, tracks...)
	return tracks
}

// FailNext makes the next `times` requests matching method and path
// prefix fail with status.
func (s *PlayQueueServer) FailNext(method, pathPrefix string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &failure{method: method, prefix: pathPrefix, status: status, times: times})
}

// SelectOnTimeline controls whether a playing or paused timeline report
// moves the queue selection, as the real server does.
func (s *PlayQueueServer) SelectOnTimeline(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectOnTL = on
}

// Calls returns every request received so far.
func (s *PlayQueueServer) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsMatching returns requests with the given method and path prefix.
func (s *PlayQueueServer) CallsMatching(method, pathPrefix string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, pathPrefix) {
			out = append(out, c)
		}
	}
	return out
}

// Timeline returns the timeline reports received so far.
func (s *PlayQueueServer) Timeline() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]url.Values, len(s.timeline))
	copy(out, s.timeline)
	return out
}

// ItemIDs returns the full item order of a queue.
func (s *PlayQueueServer) ItemIDs(queueID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[queueID]
	if q == nil {
		return nil
	}
	ids := make([]int64, len(q.items))
	for i, it := range q.items {
		ids[i] = it.id
	}
	return ids
}

// Selected returns the selected item of a queue.
func (s *PlayQueueServer) Selected(queueID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q := s.queues[queueID]; q != nil {
		return q.selected
	}
	return 0
}

// SetSelected moves the selection of a queue.
func (s *PlayQueueServer) SetSelected(queueID, itemID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q := s.queues[queueID]; q != nil {
		q.selected = itemID
	}
}

func (s *PlayQueueServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()})

	for _, f := range s.failures {
		if f.times > 0 && f.method == r.Method && strings.HasPrefix(r.URL.Path, f.prefix) {
			f.times--
			http.Error(w, http.StatusText(f.status), f.status)
			return
		}
	}

	if r.URL.Path == "/:/timeline" {
		s.handleTimeline(w, r)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) == 0 || parts[0] != "playQueues" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleCreate(w, r)
		return
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	q := s.queues[id]
	if err != nil || q == nil {
		http.NotFound(w, r)
		return
	}

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		s.writeQueue(w, q, r.URL.Query())
	case len(parts) == 2 && r.Method == http.MethodPut:
		s.handleAdd(w, r, q)
	case len(parts) == 3 && parts[2] == "shuffle" && r.Method == http.MethodPut:
		s.shuffle(q)
		s.writeQueue(w, q, nil)
	case len(parts) == 3 && parts[2] == "unshuffle" && r.Method == http.MethodPut:
		s.unshuffleQueue(q)
		s.writeQueue(w, q, nil)
	case len(parts) == 4 && parts[2] == "items" && r.Method == http.MethodDelete:
		s.handleRemove(w, r, q, parts[3])
	case len(parts) == 5 && parts[2] == "items" && parts[4] == "move" && r.Method == http.MethodPut:
		s.handleMove(w, r, q, parts[3])
	default:
		http.NotFound(w, r)
	}
}

func (s *PlayQueueServer) expand(uris []string) ([]fakeItem, bool) {
	var items []fakeItem
	for _, u := range uris {
		tracks, ok := s.library[u]
		if !ok {
			return nil, false
		}
		for _, t := range tracks {
			s.nextItem++
			items = append(items, fakeItem{id: s.nextItem, track: t})
		}
	}
	return items, true
}

func (s *PlayQueueServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	uri := query.Get("uri")
	items, ok := s.expand([]string{uri})
	if !ok || len(items) == 0 {
		http.Error(w, "unknown uri", http.StatusBadRequest)
		return
	}

	s.nextQueue++
	q := &fakeQueue{id: s.nextQueue, items: items, sourceURI: uri, version: 1}
	q.selected = items[0].id
	if key := query.Get("key"); key != "" {
		for _, it := range items {
			if fmt.Sprintf("/library/metadata/%d", it.track.RatingKey) == key {
				q.selected = it.id
				break
			}
		}
	}
	if query.Get("shuffle") == "1" {
		s.shuffle(q)
	}
	s.queues[q.id] = q
	s.writeQueue(w, q, nil)
}

func (s *PlayQueueServer) handleAdd(w http.ResponseWriter, r *http.Request, q *fakeQueue) {
	query := r.URL.Query()
	items, ok := s.expand(query["uri"])
	if !ok || len(items) == 0 {
		http.Error(w, "unknown uri", http.StatusBadRequest)
		return
	}

	pos := len(q.items)
	switch {
	case query.Get("after") != "":
		after, _ := strconv.ParseInt(query.Get("after"), 10, 64)
		idx := indexOf(q.items, after)
		if idx < 0 {
			http.Error(w, "unknown item", http.StatusBadRequest)
			return
		}
		pos = idx + 1
	case query.Get("next") == "1":
		if idx := indexOf(q.items, q.selected); idx >= 0 {
			pos = idx + 1
		}
	}

	q.items = insertAt(q.items, pos, items...)
	if q.selected == 0 {
		q.selected = items[0].id
	}
	q.version++
	s.writeQueue(w, q, nil)
}

func (s *PlayQueueServer) handleRemove(w http.ResponseWriter, r *http.Request, q *fakeQueue, raw string) {
	itemID, _ := strconv.ParseInt(raw, 10, 64)
	idx := indexOf(q.items, itemID)
	if idx < 0 {
		http.NotFound(w, r)
		return
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	if q.selected == itemID {
		switch {
		case idx < len(q.items):
			q.selected = q.items[idx].id
		case len(q.items) > 0:
			q.selected = q.items[len(q.items)-1].id
		default:
			q.selected = 0
		}
	}
	q.version++
	s.writeQueue(w, q, nil)
}

func (s *PlayQueueServer) handleMove(w http.ResponseWriter, r *http.Request, q *fakeQueue, raw string) {
	itemID, _ := strconv.ParseInt(raw, 10, 64)
	idx := indexOf(q.items, itemID)
	if idx < 0 {
		http.NotFound(w, r)
		return
	}
	item := q.items[idx]
	rest := append(append([]fakeItem{}, q.items[:idx]...), q.items[idx+1:]...)

	pos := 0
	if raw := r.URL.Query().Get("after"); raw != "" {
		after, _ := strconv.ParseInt(raw, 10, 64)
		a := indexOf(rest, after)
		if a < 0 {
			http.Error(w, "unknown anchor", http.StatusBadRequest)
			return
		}
		pos = a + 1
	}
	q.items = insertAt(rest, pos, item)
	q.version++
	s.writeQueue(w, q, nil)
}

// shuffle reverses the items after the selection, which is deterministic
// and always changes the order of two or more items.
func (s *PlayQueueServer) shuffle(q *fakeQueue) {
	if !q.shuffled {
		q.unshuffle = append([]fakeItem{}, q.items...)
	}
	start := indexOf(q.items, q.selected) + 1
	tail := q.items[start:]
	for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
		tail[i], tail[j] = tail[j], tail[i]
	}
	q.shuffled = true
	q.version++
}

func (s *PlayQueueServer) unshuffleQueue(q *fakeQueue) {
	if q.shuffled && q.unshuffle != nil {
		present := make(map[int64]bool, len(q.items))
		for _, it := range q.items {
			present[it.id] = true
		}
		restored := make([]fakeItem, 0, len(q.items))
		seen := make(map[int64]bool, len(q.items))
		for _, it := range q.unshuffle {
			if present[it.id] {
				restored = append(restored, it)
				seen[it.id] = true
			}
		}
		for _, it := range q.items {
			if !seen[it.id] {
				restored = append(restored, it)
			}
		}
		q.items = restored
	}
	q.shuffled = false
	q.unshuffle = nil
	q.version++
}

func (s *PlayQueueServer) handleTimeline(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	s.timeline = append(s.timeline, query)

	if s.selectOnTL && query.Get("state") != "stopped" {
		itemID, _ := strconv.ParseInt(query.Get("playQueueItemID"), 10, 64)
		for _, q := range s.queues {
			if indexOf(q.items, itemID) >= 0 {
				q.selected = itemID
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *PlayQueueServer) writeQueue(w http.ResponseWriter, q *fakeQueue, query url.Values) {
	items := q.items
	if query != nil {
		if window, _ := strconv.Atoi(query.Get("window")); window > 0 && window < len(items) {
			center, _ := strconv.ParseInt(query.Get("center"), 10, 64)
			if center == 0 {
				center = q.selected
			}
			c := indexOf(items, center)
			if c < 0 {
				c = 0
			}
			start := c - window/2
			if start < 0 {
				start = 0
			}
			end := start + window
			if end > len(items) {
				end = len(items)
				start = end - window
			}
			items = items[start:end]
		}
	}

	metadata := make([]map[string]any, 0, len(items))
	for _, it := range items {
		stream := map[string]any{"streamType": 2}
		if it.track.Gain != nil {
			stream["gain"] = strconv.FormatFloat(*it.track.Gain, 'f', -1, 64)
		}
		metadata = append(metadata, map[string]any{
			"playQueueItemID":  it.id,
			"ratingKey":        strconv.FormatInt(it.track.RatingKey, 10),
			"key":              fmt.Sprintf("/library/metadata/%d", it.track.RatingKey),
			"type":             "track",
			"title":            it.track.Title,
			"grandparentTitle": it.track.Artist,
			"parentTitle":      it.track.Album,
			"duration":         it.track.DurationMs,
			"Media": []map[string]any{{
				"id":       it.track.RatingKey,
				"duration": it.track.DurationMs,
				"Part": []map[string]any{{
					"id":     it.track.RatingKey,
					"key":    fmt.Sprintf("/library/parts/%d/file.mp3", it.track.RatingKey),
					"Stream": []map[string]any{stream},
				}},
			}},
		})
	}

	body := map[string]any{
		"MediaContainer": map[string]any{
			"size":                    len(items),
			"playQueueID":             q.id,
			"playQueueSelectedItemID": q.selected,
			"playQueueShuffled":       q.shuffled,
			"playQueueSourceURI":      q.sourceURI,
			"playQueueTotalCount":     len(q.items),
			"playQueueVersion":        q.version,
			"Metadata":                metadata,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func indexOf(items []fakeItem, id int64) int {
	for i, it := range items {
		if it.id == id {
			return i
		}
	}
	return -1
}

func insertAt(items []fakeItem, pos int, add ...fakeItem) []fakeItem {
	out := make([]fakeItem, 0, len(items)+len(add))
	out = append(out, items[:pos]...)
	out = append(out, add...)
	return append(out, items[pos:]...)
}
