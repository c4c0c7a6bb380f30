// Package dragdrop turns reordering gestures into chained single-item
// moves against the remote play queue.
package dragdrop

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/tessro/spool/internal/core"
	spoolerrors "github.com/tessro/spool/internal/errors"
	"github.com/tessro/spool/internal/logging"
)

// Remote is the subset of the media server client the editor drives.
type Remote interface {
	MoveItem(ctx context.Context, id, itemID, afterID int64) (*core.Queue, error)
	AddItems(ctx context.Context, id int64, uris []string, at core.Placement) (*core.Queue, error)
}

// Source is read for the queue the gesture applies to.
type Source interface {
	Snapshot() *core.Queue
}

// Refresher re-fetches the active queue into the cache and looks past
// the edges of the cached window.
type Refresher interface {
	Refresh(ctx context.Context, center int64) (*core.Queue, error)
	Window(ctx context.Context, center int64) (*core.Queue, error)
	Tail(ctx context.Context) (*core.Queue, error)
}

// Player is told to reconcile after the queue changes.
type Player interface {
	Update()
}

// Move places Item immediately after After. After 0 means the front.
type Move struct {
	Item  int64
	After int64
}

// Editor applies drop gestures.
type Editor struct {
	remote    Remote
	source    Source
	refresher Refresher
	player    Player
	logger    *log.Logger
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Editor) { e.logger = logging.Component(l, "dragdrop") }
}

// WithPlayer sets the player reconciled after each drop.
func WithPlayer(p Player) Option {
	return func(e *Editor) { e.player = p }
}

// New creates an editor.
func New(remote Remote, source Source, refresher Refresher, opts ...Option) *Editor {
	e := &Editor{
		remote:    remote,
		source:    source,
		refresher: refresher,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveAnchor returns the item the first element of batch is placed
// after, skipping items that are themselves being moved. 0 means the front.
func ResolveAnchor(q *core.Queue, batch []int64, target core.DropTarget) (int64, error) {
	moving := lo.SliceToMap(batch, func(id int64) (int64, bool) { return id, true })

	// nearest item at or before idx that is not being moved
	before := func(idx int) int64 {
		for i := idx; i >= 0; i-- {
			if id := q.Items[i].ID; !moving[id] {
				return id
			}
		}
		return 0
	}

	switch target.Kind {
	case core.DropAfter:
		idx := q.IndexOf(target.ItemID)
		if idx < 0 {
			return 0, fmt.Errorf("%w: drop target %d", spoolerrors.ErrItemNotFound, target.ItemID)
		}
		return before(idx), nil
	case core.DropBefore:
		idx := q.IndexOf(target.ItemID)
		if idx < 0 {
			return 0, fmt.Errorf("%w: drop target %d", spoolerrors.ErrItemNotFound, target.ItemID)
		}
		return before(idx - 1), nil
	case core.DropEnd:
		return before(q.Len() - 1), nil
	}
	return 0, fmt.Errorf("unknown drop kind %d", target.Kind)
}

// PlanMoves chains batch after anchor: the first element follows the
// anchor and every later one follows the element placed before it.
func PlanMoves(batch []int64, anchor int64) []Move {
	moves := make([]Move, len(batch))
	after := anchor
	for i, id := range batch {
		moves[i] = Move{Item: id, After: after}
		after = id
	}
	return moves
}

// Drop moves the items in itemIDs to target, keeping their given order.
func (e *Editor) Drop(ctx context.Context, itemIDs []int64, target core.DropTarget) error {
	q := e.source.Snapshot()
	if !q.IsActive() {
		return spoolerrors.ErrNoActiveQueue
	}

	batch := lo.Uniq(itemIDs)
	if len(batch) == 0 {
		return nil
	}
	if missing, ok := lo.Find(batch, func(id int64) bool { return q.IndexOf(id) < 0 }); ok {
		return fmt.Errorf("%w: %d", spoolerrors.ErrItemNotFound, missing)
	}

	anchor, err := e.resolve(ctx, q, batch, target)
	if err != nil {
		return err
	}

	moves := PlanMoves(batch, anchor)
	e.logger.Debug("dropping items", "queue", q.ID, "count", len(batch), "anchor", anchor)
	chainErr := e.apply(ctx, q.ID, moves)
	return e.resync(ctx, chainErr)
}

// InsertTracks adds library URIs at target in the given order.
func (e *Editor) InsertTracks(ctx context.Context, uris []string, target core.DropTarget) error {
	q := e.source.Snapshot()
	if !q.IsActive() {
		return spoolerrors.ErrNoActiveQueue
	}
	if len(uris) == 0 {
		return nil
	}

	if target.Kind == core.DropEnd {
		_, err := e.remote.AddItems(ctx, q.ID, uris, core.Placement{End: true})
		if err != nil {
			err = fmt.Errorf("insert tracks: %w", err)
		}
		return e.resync(ctx, err)
	}

	anchor, err := e.resolve(ctx, q, nil, target)
	if err != nil {
		return err
	}

	if anchor != 0 {
		_, err := e.remote.AddItems(ctx, q.ID, uris, core.Placement{After: anchor})
		if err != nil {
			err = fmt.Errorf("insert tracks: %w", err)
		}
		return e.resync(ctx, err)
	}

	// There is no "after nothing" placement: append, then chain the new
	// items to the front.
	added, err := e.remote.AddItems(ctx, q.ID, uris, core.Placement{End: true})
	if err != nil {
		return e.resync(ctx, fmt.Errorf("insert tracks: %w", err))
	}
	// The new items are the tail of the response: the queue grew by their
	// count and they were appended.
	count := added.TotalCount - q.TotalCount
	ids := added.ItemIDs()
	if count <= 0 || count > len(ids) {
		return e.resync(ctx, fmt.Errorf("insert tracks: cannot locate %d appended items", count))
	}
	fresh := ids[len(ids)-count:]
	return e.resync(ctx, e.apply(ctx, q.ID, PlanMoves(fresh, 0)))
}

// resolve is ResolveAnchor over the cached window, widened when the answer
// may lie outside it: the end of a partial window is not the end of the
// queue, and the front of one is not the front of the queue.
func (e *Editor) resolve(ctx context.Context, q *core.Queue, batch []int64, target core.DropTarget) (int64, error) {
	anchor, err := ResolveAnchor(q, batch, target)
	if err != nil || q.Len() >= q.TotalCount {
		return anchor, err
	}
	if target.Kind != core.DropEnd && anchor != 0 {
		return anchor, nil
	}

	var wider *core.Queue
	if target.Kind == core.DropEnd {
		wider, err = e.refresher.Tail(ctx)
	} else {
		wider, err = e.refresher.Window(ctx, target.ItemID)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve drop position: %w", err)
	}
	return ResolveAnchor(wider, batch, target)
}

func (e *Editor) apply(ctx context.Context, queueID int64, moves []Move) error {
	for i, m := range moves {
		if _, err := e.remote.MoveItem(ctx, queueID, m.Item, m.After); err != nil {
			e.logger.Warn("move chain interrupted", "step", i+1, "of", len(moves), "item", m.Item, "err", err)
			return fmt.Errorf("move item %d: %w", m.Item, err)
		}
	}
	return nil
}

// resync re-fetches the queue once and reconciles the player. The chain's
// own error, if any, takes precedence.
func (e *Editor) resync(ctx context.Context, chainErr error) error {
	_, err := e.refresher.Refresh(ctx, 0)
	if err != nil {
		if chainErr != nil {
			e.logger.Warn("resync after failed edit also failed", "err", err)
			return chainErr
		}
		return fmt.Errorf("refresh after edit: %w", err)
	}
	if e.player != nil {
		e.player.Update()
	}
	return chainErr
}
