package dragdrop

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/tessro/spool/internal/core"
	spoolerrors "github.com/tessro/spool/internal/errors"
	"github.com/tessro/spool/internal/plex/client"
	"github.com/tessro/spool/internal/queue"
	"github.com/tessro/spool/internal/testsupport"
)

type fakePlayer struct {
	updates int
}

func (p *fakePlayer) Update() { p.updates++ }

// failingRemote fails the failAt-th move.
type failingRemote struct {
	Remote
	failAt int
	moves  int
}

func (r *failingRemote) MoveItem(ctx context.Context, id, itemID, afterID int64) (*core.Queue, error) {
	r.moves++
	if r.moves == r.failAt {
		return nil, errors.New("connection reset")
	}
	return r.Remote.MoveItem(ctx, id, itemID, afterID)
}

type fixture struct {
	srv    *testsupport.PlayQueueServer
	client *client.Client
	svc    *queue.Service
	player *fakePlayer
	queue  *core.Queue
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	return newWindowedFixture(t, n, 100)
}

// newWindowedFixture caches only a window of the queue around the
// selection, like a long queue fetched with a small window.
func newWindowedFixture(t *testing.T, n, window int) *fixture {
	t.Helper()
	srv := testsupport.NewPlayQueueServer()
	t.Cleanup(srv.Close)
	srv.AddAlbum("library://album/1", 10, n)
	srv.AddAlbum("library://track/a", 500, 1)
	srv.AddAlbum("library://track/b", 600, 1)

	c := client.New(srv.URL)
	svc := queue.NewService(c, queue.NewCache(), queue.WithWindow(window))
	q, err := svc.Create(context.Background(), "library://album/1", false, "")
	if err != nil {
		t.Fatal(err)
	}
	if q.Len() > window {
		if q, err = svc.Refresh(context.Background(), 0); err != nil {
			t.Fatal(err)
		}
	}
	return &fixture{srv: srv, client: c, svc: svc, player: &fakePlayer{}, queue: q}
}

func (f *fixture) editor(remote Remote) *Editor {
	return New(remote, f.svc.Cache(), f.svc, WithPlayer(f.player))
}

func (f *fixture) ids(idx ...int) []int64 {
	out := make([]int64, len(idx))
	for i, j := range idx {
		out[i] = f.queue.Items[j].ID
	}
	return out
}

// expectedOrder removes batch from order and reinserts it after anchor.
func expectedOrder(order, batch []int64, anchor int64) []int64 {
	moving := make(map[int64]bool)
	for _, id := range batch {
		moving[id] = true
	}
	var rest []int64
	for _, id := range order {
		if !moving[id] {
			rest = append(rest, id)
		}
	}
	pos := 0
	for i, id := range rest {
		if id == anchor {
			pos = i + 1
		}
	}
	out := append([]int64{}, rest[:pos]...)
	out = append(out, batch...)
	return append(out, rest[pos:]...)
}

func TestResolveAnchor(t *testing.T) {
	q := &core.Queue{ID: 1}
	for id := int64(1); id <= 6; id++ {
		q.Items = append(q.Items, core.QueueItem{ID: id})
	}

	tests := []struct {
		name    string
		batch   []int64
		target  core.DropTarget
		want    int64
		wantErr bool
	}{
		{"after item", []int64{5}, core.DropAfterItem(2), 2, false},
		{"before item", []int64{5}, core.DropBeforeItem(3), 2, false},
		{"before first is front", []int64{5}, core.DropBeforeItem(1), 0, false},
		{"before skips batch", []int64{2, 5}, core.DropBeforeItem(3), 1, false},
		{"after self", []int64{3, 4}, core.DropAfterItem(4), 2, false},
		{"after self at front", []int64{1, 2}, core.DropAfterItem(2), 0, false},
		{"end", []int64{2}, core.DropAtEnd(), 6, false},
		{"end skips batch", []int64{6, 5}, core.DropAtEnd(), 4, false},
		{"end of all batch", []int64{1, 2, 3, 4, 5, 6}, core.DropAtEnd(), 0, false},
		{"unknown target", []int64{1}, core.DropAfterItem(99), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAnchor(q, tt.batch, tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("anchor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPlanMovesChains(t *testing.T) {
	got := PlanMoves([]int64{7, 3, 9}, 4)
	want := []Move{{Item: 7, After: 4}, {Item: 3, After: 7}, {Item: 9, After: 3}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("move %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDropPreservesBatchOrder(t *testing.T) {
	batches := map[int][]int{
		1: {7},
		2: {8, 2},
		5: {9, 1, 5, 3, 6},
	}
	targets := []struct {
		name   string
		target func(f *fixture, batch []int64) core.DropTarget
	}{
		{"after first", func(f *fixture, _ []int64) core.DropTarget { return core.DropAfterItem(f.queue.Items[0].ID) }},
		{"before fifth", func(f *fixture, _ []int64) core.DropTarget { return core.DropBeforeItem(f.queue.Items[4].ID) }},
		{"before first", func(f *fixture, _ []int64) core.DropTarget { return core.DropBeforeItem(f.queue.Items[0].ID) }},
		{"end", func(*fixture, []int64) core.DropTarget { return core.DropAtEnd() }},
		{"onto itself", func(_ *fixture, batch []int64) core.DropTarget { return core.DropAfterItem(batch[0]) }},
	}

	for _, n := range []int{1, 2, 5} {
		for _, tt := range targets {
			t.Run(fmt.Sprintf("N=%d/%s", n, tt.name), func(t *testing.T) {
				f := newFixture(t, 10)
				batch := f.ids(batches[n]...)
				target := tt.target(f, batch)

				anchor, err := ResolveAnchor(f.queue, batch, target)
				if err != nil {
					t.Fatal(err)
				}
				want := expectedOrder(f.queue.ItemIDs(), batch, anchor)

				if err := f.editor(f.client).Drop(context.Background(), batch, target); err != nil {
					t.Fatalf("Drop() error = %v", err)
				}

				got := f.srv.ItemIDs(f.queue.ID)
				if fmt.Sprint(got) != fmt.Sprint(want) {
					t.Errorf("order = %v, want %v", got, want)
				}
				if moves := f.srv.CallsMatching(http.MethodPut, "/playQueues/"); len(moves) != n {
					t.Errorf("made %d move calls, want %d", len(moves), n)
				}
				if gets := f.srv.CallsMatching(http.MethodGet, "/playQueues/"); len(gets) != 1 {
					t.Errorf("made %d re-fetches, want 1", len(gets))
				}
				if cached := f.svc.Cache().Snapshot().ItemIDs(); fmt.Sprint(cached) != fmt.Sprint(want) {
					t.Errorf("cache order = %v, want %v", cached, want)
				}
				if f.player.updates != 1 {
					t.Errorf("player updated %d times, want 1", f.player.updates)
				}
				if sel := f.svc.Cache().Snapshot(); sel.Selected() == nil {
					t.Error("selection must stay valid after a drop")
				}
			})
		}
	}
}

func TestDropValidation(t *testing.T) {
	f := newFixture(t, 4)
	e := f.editor(f.client)
	ctx := context.Background()

	if err := e.Drop(ctx, []int64{12345}, core.DropAtEnd()); !errors.Is(err, spoolerrors.ErrItemNotFound) {
		t.Errorf("unknown item: error = %v", err)
	}
	if err := e.Drop(ctx, nil, core.DropAtEnd()); err != nil {
		t.Errorf("empty batch: error = %v", err)
	}
	if n := len(f.srv.CallsMatching(http.MethodPut, "/playQueues/")); n != 0 {
		t.Errorf("invalid drops made %d calls", n)
	}

	dup := f.ids(2, 2, 1)
	if err := e.Drop(ctx, dup, core.DropAtEnd()); err != nil {
		t.Fatal(err)
	}
	if n := len(f.srv.CallsMatching(http.MethodPut, "/playQueues/")); n != 2 {
		t.Errorf("duplicates should be dropped from the batch, made %d moves", n)
	}

	empty := New(f.client, queue.NewCache(), f.svc)
	if err := empty.Drop(ctx, dup, core.DropAtEnd()); !errors.Is(err, spoolerrors.ErrNoActiveQueue) {
		t.Errorf("no queue: error = %v", err)
	}
}

func TestDropMidChainFailureResyncs(t *testing.T) {
	f := newFixture(t, 8)
	remote := &failingRemote{Remote: f.client, failAt: 3}
	batch := f.ids(7, 6, 5, 4)

	err := f.editor(remote).Drop(context.Background(), batch, core.DropAfterItem(f.queue.Items[0].ID))
	if err == nil {
		t.Fatal("expected the chain error")
	}
	if remote.moves != 3 {
		t.Errorf("chain should stop at the failure, made %d moves", remote.moves)
	}
	if gets := f.srv.CallsMatching(http.MethodGet, "/playQueues/"); len(gets) != 1 {
		t.Errorf("failed chain should still re-fetch once, got %d", len(gets))
	}
	if cached, server := f.svc.Cache().Snapshot().ItemIDs(), f.srv.ItemIDs(f.queue.ID); fmt.Sprint(cached) != fmt.Sprint(server) {
		t.Errorf("cache %v should match server %v", cached, server)
	}
	if f.player.updates != 1 {
		t.Error("player should reconcile after a partial drop")
	}
}

func TestDropRefreshFailure(t *testing.T) {
	f := newFixture(t, 4)
	f.srv.FailNext(http.MethodGet, "/playQueues/", http.StatusNotFound, 1)

	err := f.editor(f.client).Drop(context.Background(), f.ids(3), core.DropBeforeItem(f.queue.Items[0].ID))
	if !client.IsNotFound(err) {
		t.Errorf("error = %v, want refresh failure", err)
	}
	if f.player.updates != 0 {
		t.Error("player should not reconcile against a stale cache")
	}
}

func TestInsertTracks(t *testing.T) {
	uris := []string{"library://track/b", "library://track/a"}

	tests := []struct {
		name   string
		target func(f *fixture) core.DropTarget
		at     int
	}{
		{"after item", func(f *fixture) core.DropTarget { return core.DropAfterItem(f.queue.Items[1].ID) }, 2},
		{"before item", func(f *fixture) core.DropTarget { return core.DropBeforeItem(f.queue.Items[3].ID) }, 3},
		{"at end", func(*fixture) core.DropTarget { return core.DropAtEnd() }, 4},
		{"at front", func(f *fixture) core.DropTarget { return core.DropBeforeItem(f.queue.Items[0].ID) }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 4)
			if err := f.editor(f.client).InsertTracks(context.Background(), uris, tt.target(f)); err != nil {
				t.Fatal(err)
			}

			q := f.svc.Cache().Snapshot()
			if q.Len() != 6 {
				t.Fatalf("queue has %d items, want 6", q.Len())
			}
			if q.Items[tt.at].Track.ID != 600 || q.Items[tt.at+1].Track.ID != 500 {
				t.Errorf("inserted tracks not at %d in order: %v", tt.at, q.ItemIDs())
			}
			if f.player.updates != 1 {
				t.Errorf("player updated %d times, want 1", f.player.updates)
			}
		})
	}
}

func TestDropAtEndOfLongQueue(t *testing.T) {
	tests := []struct {
		name  string
		batch []int // indexes into the full queue
	}{
		{"one item", []int{1}},
		{"batch", []int{3, 1}},
		{"batch with the selection", []int{4, 0, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWindowedFixture(t, 30, 10)
			if f.queue.Len() != 10 || f.queue.TotalCount != 30 {
				t.Fatalf("cached window = %d of %d, want 10 of 30", f.queue.Len(), f.queue.TotalCount)
			}

			order := f.srv.ItemIDs(f.queue.ID)
			batch := make([]int64, len(tt.batch))
			for i, idx := range tt.batch {
				batch[i] = order[idx]
			}
			want := expectedOrder(order, batch, order[29])

			if err := f.editor(f.client).Drop(context.Background(), batch, core.DropAtEnd()); err != nil {
				t.Fatalf("Drop() error = %v", err)
			}
			if got := f.srv.ItemIDs(f.queue.ID); fmt.Sprint(got) != fmt.Sprint(want) {
				t.Errorf("order = %v, want %v", got, want)
			}
		})
	}
}

func TestDropBeforeWindowStart(t *testing.T) {
	f := newWindowedFixture(t, 30, 10)
	order := f.srv.ItemIDs(f.queue.ID)

	// Center the cached window on item 20 so item 15 is its first row.
	f.srv.SetSelected(f.queue.ID, order[20])
	q, err := f.svc.Refresh(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if q.Items[0].ID != order[15] {
		t.Fatalf("window starts at %d, want %d", q.Items[0].ID, order[15])
	}

	batch := []int64{order[18]}
	if err := f.editor(f.client).Drop(context.Background(), batch, core.DropBeforeItem(order[15])); err != nil {
		t.Fatal(err)
	}
	want := expectedOrder(order, batch, order[14])
	if got := f.srv.ItemIDs(f.queue.ID); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestInsertTracksAtEndOfLongQueue(t *testing.T) {
	f := newWindowedFixture(t, 30, 10)
	uris := []string{"library://track/b", "library://track/a"}

	if err := f.editor(f.client).InsertTracks(context.Background(), uris, core.DropAtEnd()); err != nil {
		t.Fatal(err)
	}

	order := f.srv.ItemIDs(f.queue.ID)
	if len(order) != 32 {
		t.Fatalf("queue has %d items, want 32", len(order))
	}
	puts := f.srv.CallsMatching(http.MethodPut, "/playQueues/")
	if len(puts) != 1 || puts[0].Query.Get("end") != "1" || puts[0].Query.Get("after") != "" {
		t.Errorf("insert at end should append with one end placement, calls = %+v", puts)
	}
	if order[30] <= order[29] || order[31] <= order[30] {
		t.Errorf("new items not appended last: %v", order[28:])
	}
}
