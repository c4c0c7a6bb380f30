package client

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tessro/spool/internal/core"
	spoolerrors "github.com/tessro/spool/internal/errors"
	"github.com/tessro/spool/internal/testsupport"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		params url.Values
		want   string
	}{
		{
			name: "no params",
			path: "/playQueues/1",
			want: "/playQueues/1",
		},
		{
			name:   "empty params",
			path:   "/playQueues/1",
			params: url.Values{},
			want:   "/playQueues/1",
		},
		{
			name:   "single param",
			path:   "/playQueues/1",
			params: url.Values{"window": {"50"}},
			want:   "/playQueues/1?window=50",
		},
		{
			name:   "repeated param keeps order",
			path:   "/playQueues/1",
			params: url.Values{"uri": {"a", "b"}, "end": {"1"}},
			want:   "/playQueues/1?end=1&uri=a&uri=b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildURL(tt.path, tt.params); got != tt.want {
				t.Errorf("BuildURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIError(t *testing.T) {
	err := newAPIError(http.StatusUnauthorized, []byte("bad token"))

	if got, want := err.Error(), "server error 401: bad token"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsUnauthorized(err) {
		t.Error("401 should be unauthorized")
	}
	if IsNotFound(err) {
		t.Error("401 should not be not-found")
	}

	notFound := newAPIError(http.StatusNotFound, nil)
	if notFound.Message != "Not Found" {
		t.Errorf("empty body should fall back to status text, got %q", notFound.Message)
	}
	if !IsNotFound(notFound) {
		t.Error("404 should be not-found")
	}
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"MediaContainer":{"playQueueID":7}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"), WithClientID("cid"), WithProduct("spool-test"))
	if _, err := c.FetchQueue(context.Background(), 7, FetchOptions{}); err != nil {
		t.Fatalf("FetchQueue() error = %v", err)
	}

	checks := map[string]string{
		"Accept":                   "application/json",
		"X-Plex-Token":             "tok",
		"X-Plex-Client-Identifier": "cid",
		"X-Plex-Product":           "spool-test",
	}
	for k, want := range checks {
		if v := got.Get(k); v != want {
			t.Errorf("header %s = %q, want %q", k, v, want)
		}
	}
}

func TestRetryOnlyIdempotentReads(t *testing.T) {
	tests := []struct {
		name      string
		call      func(c *Client) error
		wantCalls int32
		wantErr   bool
	}{
		{
			name: "fetch retries 5xx then succeeds",
			call: func(c *Client) error {
				_, err := c.FetchQueue(context.Background(), 1, FetchOptions{})
				return err
			},
			wantCalls: 3,
		},
		{
			name: "move is not retried",
			call: func(c *Client) error {
				_, err := c.MoveItem(context.Background(), 1, 2, 3)
				return err
			},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name: "timeline is not retried",
			call: func(c *Client) error {
				return c.ReportTimeline(context.Background(), core.TimelineEvent{QueueItemID: 1, Status: core.StatusPlaying})
			},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&calls, 1) < 3 {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				_, _ = w.Write([]byte(`{"MediaContainer":{"playQueueID":1}}`))
			}))
			defer srv.Close()

			c := New(srv.URL, WithRetryWait(time.Millisecond))
			err := tt.call(c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("server saw %d calls, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestNetworkErrorWrapsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := New(addr)
	_, err := c.RemoveItem(context.Background(), 1, 2)
	if !errors.Is(err, spoolerrors.ErrNetworkError) {
		t.Errorf("error = %v, want ErrNetworkError", err)
	}
}

func TestCreateAndFetchQueue(t *testing.T) {
	srv := testsupport.NewPlayQueueServer()
	defer srv.Close()
	tracks := srv.AddAlbum("library://album/1", 10, 5)

	c := New(srv.URL)
	ctx := context.Background()

	q, err := c.CreateQueue(ctx, "library://album/1", false, "/library/metadata/12", core.RepeatAll)
	if err != nil {
		t.Fatalf("CreateQueue() error = %v", err)
	}
	if q.ID == core.NoQueue || q.Len() != len(tracks) {
		t.Fatalf("CreateQueue() = id %d len %d", q.ID, q.Len())
	}
	if sel := q.Selected(); sel == nil || sel.Track.ID != 12 {
		t.Fatalf("selection should start at key 12, got %+v", sel)
	}

	create := srv.CallsMatching("POST", "/playQueues")[0].Query
	if create.Get("type") != "audio" || create.Get("repeat") != "2" || create.Get("continuous") != "0" {
		t.Errorf("unexpected create query %v", create)
	}

	fetched, err := c.FetchQueue(ctx, q.ID, FetchOptions{Window: 3, Repeat: core.RepeatOne})
	if err != nil {
		t.Fatalf("FetchQueue() error = %v", err)
	}
	if fetched.Len() != 3 || fetched.TotalCount != 5 {
		t.Errorf("window = %d total = %d, want 3 and 5", fetched.Len(), fetched.TotalCount)
	}
	if fetched.Selected() == nil {
		t.Error("window should contain the selection")
	}

	get := srv.CallsMatching("GET", "/playQueues/")[0].Query
	if get.Get("includeBefore") != "1" || get.Get("includeAfter") != "1" || get.Get("repeat") != "1" {
		t.Errorf("unexpected fetch query %v", get)
	}
}

func TestAddItemsAfterPreservesOrder(t *testing.T) {
	srv := testsupport.NewPlayQueueServer()
	defer srv.Close()
	srv.AddAlbum("library://album/1", 10, 4)
	srv.AddAlbum("library://track/a", 100, 1)
	srv.AddAlbum("library://track/b", 200, 1)
	srv.AddAlbum("library://track/c", 300, 1)

	c := New(srv.URL)
	ctx := context.Background()

	q, err := c.CreateQueue(ctx, "library://album/1", false, "", core.RepeatOff)
	if err != nil {
		t.Fatal(err)
	}

	for _, anchor := range []int{0, 2, 3} {
		after := q.Items[anchor].ID
		uris := []string{"library://track/c", "library://track/a", "library://track/b"}
		got, err := c.AddItems(ctx, q.ID, uris, core.Placement{After: after, End: true})
		if err != nil {
			t.Fatalf("AddItems() error = %v", err)
		}

		idx := got.IndexOf(after)
		want := []int64{300, 100, 200}
		for i, rk := range want {
			if it := got.Items[idx+1+i]; it.Track.ID != rk {
				t.Errorf("anchor %d: position %d has track %d, want %d", anchor, i, it.Track.ID, rk)
			}
		}
		if got.Selected() == nil {
			t.Error("selection must stay valid after add")
		}
		q = got
	}

	last := srv.CallsMatching("PUT", "/playQueues/")
	query := last[len(last)-1].Query
	if query.Get("end") != "" {
		t.Errorf("after should win over end, query %v", query)
	}
}

func TestAddItemsPlacement(t *testing.T) {
	tests := []struct {
		name  string
		at    core.Placement
		key   string
		value string
	}{
		{"default end", core.Placement{}, "end", "1"},
		{"next", core.Placement{Next: true, End: true}, "next", "1"},
		{"after", core.Placement{After: 5, Next: true}, "after", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var query url.Values
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				query = r.URL.Query()
				_, _ = w.Write([]byte(`{"MediaContainer":{"playQueueID":1}}`))
			}))
			defer srv.Close()

			if _, err := New(srv.URL).AddItems(context.Background(), 1, []string{"u"}, tt.at); err != nil {
				t.Fatal(err)
			}
			if query.Get(tt.key) != tt.value {
				t.Errorf("%s = %q, want %q (query %v)", tt.key, query.Get(tt.key), tt.value, query)
			}
			flags := 0
			for _, k := range []string{"after", "next", "end"} {
				if query.Has(k) {
					flags++
				}
			}
			if flags != 1 {
				t.Errorf("exactly one placement flag expected, query %v", query)
			}
		})
	}
}

func TestMoveItemToFrontOmitsAfter(t *testing.T) {
	srv := testsupport.NewPlayQueueServer()
	defer srv.Close()
	srv.AddAlbum("library://album/1", 10, 3)

	c := New(srv.URL)
	ctx := context.Background()
	q, err := c.CreateQueue(ctx, "library://album/1", false, "", core.RepeatOff)
	if err != nil {
		t.Fatal(err)
	}

	last := q.Items[2].ID
	got, err := c.MoveItem(ctx, q.ID, last, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Items[0].ID != last {
		t.Errorf("item should be first, got order %v", got.ItemIDs())
	}

	move := srv.CallsMatching("PUT", "/playQueues/")[0]
	if move.Query.Has("after") {
		t.Errorf("front move should omit after, query %v", move.Query)
	}
}

func TestToggleShuffle(t *testing.T) {
	srv := testsupport.NewPlayQueueServer()
	defer srv.Close()
	srv.AddAlbum("library://album/1", 10, 4)

	c := New(srv.URL)
	ctx := context.Background()
	q, _ := c.CreateQueue(ctx, "library://album/1", false, "", core.RepeatOff)
	original := q.ItemIDs()

	shuffled, err := c.ToggleShuffle(ctx, q.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if !shuffled.Shuffled {
		t.Error("queue should report shuffled")
	}
	if shuffled.SelectedItemID != q.SelectedItemID {
		t.Error("shuffle must keep the selection")
	}

	restored, err := c.ToggleShuffle(ctx, q.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Shuffled {
		t.Error("queue should report unshuffled")
	}
	for i, id := range restored.ItemIDs() {
		if id != original[i] {
			t.Fatalf("unshuffle order = %v, want %v", restored.ItemIDs(), original)
		}
	}
}

func TestReportTimelineQuery(t *testing.T) {
	srv := testsupport.NewPlayQueueServer()
	defer srv.Close()

	ev := core.TimelineEvent{
		QueueItemID: 42,
		Status:      core.StatusPaused,
		Position:    1500 * time.Millisecond,
		Track:       core.Track{ID: 9, Key: "/library/metadata/9", Duration: time.Minute},
	}
	if err := New(srv.URL).ReportTimeline(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	got := srv.Timeline()[0]
	want := map[string]string{
		"ratingKey":       "9",
		"key":             "/library/metadata/9",
		"state":           "paused",
		"time":            "1500",
		"duration":        "60000",
		"playQueueItemID": "42",
	}
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, got.Get(k), v)
		}
	}
}

func TestStreamURL(t *testing.T) {
	c := New("http://media.local:32400/", WithToken("tok"))

	if got := c.StreamURL(core.Track{}); got != "" {
		t.Errorf("track without source should yield empty url, got %q", got)
	}

	got := c.StreamURL(core.Track{SourceKey: "/library/parts/1/file.flac"})
	if !strings.HasPrefix(got, "http://media.local:32400/library/parts/1/file.flac?") {
		t.Errorf("StreamURL() = %q", got)
	}
	if !strings.Contains(got, "X-Plex-Token=tok") {
		t.Errorf("StreamURL() should carry the token, got %q", got)
	}
}

func TestConvertQueue(t *testing.T) {
	body := `{"MediaContainer":{
		"playQueueID": 5,
		"playQueueSelectedItemID": 11,
		"playQueueShuffled": true,
		"playQueueTotalCount": 2,
		"playQueueVersion": 3,
		"allowShuffle": false,
		"Metadata": [
			{"playQueueItemID": 11, "ratingKey": "100", "key": "/library/metadata/100",
			 "title": "One", "grandparentTitle": "Band", "originalTitle": "Guest", "parentTitle": "LP",
			 "duration": 2000,
			 "Media": [{"Part": [{"key": "/p/100", "Stream": [{"streamType": 1}, {"streamType": 2, "gain": "-6.5"}]}]}]},
			{"playQueueItemID": 12, "ratingKey": "101", "title": "Two", "grandparentTitle": "Band",
			 "Media": [{"Part": [{"key": "/p/101", "Stream": [{"streamType": 2, "gain": 1.25}]}]}]},
			{"playQueueItemID": 13, "ratingKey": "102", "title": "Three"}
		]}}`

	var env Envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	q := convertQueue(&env.MediaContainer)

	if q.ID != 5 || q.SelectedItemID != 11 || !q.Shuffled || q.AllowShuffle || q.Version != 3 {
		t.Errorf("unexpected queue header %+v", q)
	}

	first := q.Items[0].Track
	if first.ID != 100 || first.Artist != "Guest" || first.Album != "LP" || first.Duration != 2*time.Second {
		t.Errorf("unexpected first track %+v", first)
	}
	if first.GainDB == nil || math.Abs(*first.GainDB+6.5) > 1e-9 {
		t.Errorf("string gain should decode, got %v", first.GainDB)
	}
	if first.SourceKey != "/p/100" {
		t.Errorf("SourceKey = %q", first.SourceKey)
	}

	if g := q.Items[1].Track.GainDB; g == nil || *g != 1.25 {
		t.Errorf("numeric gain should decode, got %v", g)
	}
	if q.Items[1].Track.Artist != "Band" {
		t.Errorf("artist should fall back to grandparent title")
	}
	if q.Items[2].Track.HasGain() {
		t.Error("track without media should have no gain")
	}
}

func TestConvertQueueNil(t *testing.T) {
	if convertQueue(nil) != nil {
		t.Error("convertQueue(nil) should be nil")
	}
	if convertTrack(nil) != nil {
		t.Error("convertTrack(nil) should be nil")
	}
}
