package session

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/tessro/spool/internal/config"
	"github.com/tessro/spool/internal/core"
	"github.com/tessro/spool/internal/dragdrop"
	spoolerrors "github.com/tessro/spool/internal/errors"
	"github.com/tessro/spool/internal/logging"
	"github.com/tessro/spool/internal/plex/client"
	"github.com/tessro/spool/internal/queue"
	"github.com/tessro/spool/internal/settings"
)

// Remote edits the saved queue from a process that is not playing it.
// There is no audio engine; the server's selected item stands in for the
// playing one.
type Remote struct {
	store  *settings.Store
	logger *log.Logger
	client *client.Client
	queue  *queue.Service
	editor *dragdrop.Editor
}

// OpenRemote loads the queue saved by the last playing session.
func OpenRemote(ctx context.Context, cfg *config.Config, store *settings.Store, opts ...Option) (*Remote, error) {
	id := store.Get().LastQueueID
	if id == core.NoQueue {
		return nil, spoolerrors.ErrNoActiveQueue
	}

	o := buildOptions(cfg, opts)
	r := &Remote{
		store:  store,
		logger: logging.Component(o.logger, "remote"),
		client: newClient(cfg, store, o),
	}
	r.queue = newQueueService(r.client, queue.NewCache(), cfg, store, o)

	if _, err := r.queue.Load(ctx, id); err != nil {
		if client.IsNotFound(err) {
			r.logger.Info("saved queue no longer exists", "queue", id)
			if uerr := store.Update(func(st *settings.Settings) { st.LastQueueID = core.NoQueue }); uerr != nil {
				r.logger.Warn("failed to clear queue id", "err", uerr)
			}
		}
		return nil, err
	}

	r.editor = dragdrop.New(r.client, r.queue.Cache(), r.queue, dragdrop.WithLogger(o.logger))
	return r, nil
}

// Queue returns the loaded queue window.
func (r *Remote) Queue() *core.Queue {
	return r.queue.Cache().Snapshot()
}

// Add inserts library URIs.
func (r *Remote) Add(ctx context.Context, uris []string, at core.Placement) error {
	_, err := r.queue.Add(ctx, uris, at)
	return err
}

// Insert drops library URIs at target.
func (r *Remote) Insert(ctx context.Context, uris []string, target core.DropTarget) error {
	return r.editor.InsertTracks(ctx, uris, target)
}

// Remove deletes an item other than the selected one.
func (r *Remote) Remove(ctx context.Context, itemID int64) error {
	if q := r.Queue(); q != nil && q.SelectedItemID == itemID {
		return fmt.Errorf("%w: item %d is selected", spoolerrors.ErrCannotRemoveCurrent, itemID)
	}
	_, err := r.queue.Remove(ctx, itemID)
	return err
}

// Move reorders a batch of items to target.
func (r *Remote) Move(ctx context.Context, itemIDs []int64, target core.DropTarget) error {
	return r.editor.Drop(ctx, itemIDs, target)
}

// ToggleShuffle shuffles or unshuffles the queue.
func (r *Remote) ToggleShuffle(ctx context.Context) error {
	_, err := r.queue.ToggleShuffle(ctx)
	return err
}
