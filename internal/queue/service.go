package queue

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/tessro/spool/internal/core"
	spoolerrors "github.com/tessro/spool/internal/errors"
	"github.com/tessro/spool/internal/logging"
	"github.com/tessro/spool/internal/plex/client"
)

// DefaultWindow is the number of items fetched around the center item.
const DefaultWindow = 50

// Remote is the subset of the media server client the service drives.
type Remote interface {
	CreateQueue(ctx context.Context, sourceURI string, shuffle bool, startKey string, repeat core.RepeatMode) (*core.Queue, error)
	FetchQueue(ctx context.Context, id int64, opts client.FetchOptions) (*core.Queue, error)
	AddItems(ctx context.Context, id int64, uris []string, at core.Placement) (*core.Queue, error)
	RemoveItem(ctx context.Context, id, itemID int64) (*core.Queue, error)
	MoveItem(ctx context.Context, id, itemID, afterID int64) (*core.Queue, error)
	ToggleShuffle(ctx context.Context, id int64, on bool) (*core.Queue, error)
}

// Service performs queue calls and commits their results to a Cache.
type Service struct {
	remote Remote
	cache  *Cache
	window int
	repeat func() core.RepeatMode
	logger *log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithWindow sets the fetch window size.
func WithWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithRepeat sets the accessor for the repeat preference forwarded on
// create and fetch.
func WithRepeat(fn func() core.RepeatMode) Option {
	return func(s *Service) { s.repeat = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = logging.Component(l, "queue") }
}

// NewService creates a service writing into cache.
func NewService(remote Remote, cache *Cache, opts ...Option) *Service {
	s := &Service{
		remote: remote,
		cache:  cache,
		window: DefaultWindow,
		repeat: func() core.RepeatMode { return core.RepeatOff },
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the cache the service writes to.
func (s *Service) Cache() *Cache {
	return s.cache
}

// Create materializes a new queue from a library URI and makes it active.
func (s *Service) Create(ctx context.Context, uri string, shuffle bool, startKey string) (*core.Queue, error) {
	tok := s.cache.Begin()
	q, err := s.Build(ctx, uri, shuffle, startKey)
	if err != nil {
		return nil, err
	}
	return s.commit(tok, q), nil
}

// Build creates a queue on the server and leaves the cache alone, so a
// failure keeps whatever queue is active.
func (s *Service) Build(ctx context.Context, uri string, shuffle bool, startKey string) (*core.Queue, error) {
	q, err := s.remote.CreateQueue(ctx, uri, shuffle, startKey, s.repeat())
	if err != nil {
		return nil, fmt.Errorf("create queue: %w", err)
	}
	return q, nil
}

// Install makes q the active queue, dropping any response still in flight
// for the previous one.
func (s *Service) Install(q *core.Queue) {
	s.cache.Replace(q)
	s.logger.Debug("queue installed", "id", q.ID, "version", q.Version, "items", q.Len(), "selected", q.SelectedItemID)
}

// Load fetches an existing queue by ID and makes it active.
func (s *Service) Load(ctx context.Context, id int64) (*core.Queue, error) {
	tok := s.cache.Begin()
	q, err := s.remote.FetchQueue(ctx, id, s.fetchOptions(0))
	if err != nil {
		return nil, fmt.Errorf("load queue %d: %w", id, err)
	}
	return s.commit(tok, q), nil
}

// Refresh re-fetches the active queue centered on center, or on the
// selection when center is 0.
func (s *Service) Refresh(ctx context.Context, center int64) (*core.Queue, error) {
	id, err := s.activeID()
	if err != nil {
		return nil, err
	}
	tok := s.cache.Begin()
	q, err := s.remote.FetchQueue(ctx, id, s.fetchOptions(center))
	if err != nil {
		return nil, fmt.Errorf("refresh queue: %w", err)
	}
	return s.commit(tok, q), nil
}

// Window fetches the active queue centered on center without committing
// it. Gestures use it to look past the edges of the cached window.
func (s *Service) Window(ctx context.Context, center int64) (*core.Queue, error) {
	id, err := s.activeID()
	if err != nil {
		return nil, err
	}
	q, err := s.remote.FetchQueue(ctx, id, s.fetchOptions(center))
	if err != nil {
		return nil, fmt.Errorf("fetch queue window: %w", err)
	}
	return q, nil
}

// Tail returns a window that ends with the last item of the whole queue.
// When the cached window stops short of it, windows are fetched centered
// on their own last item until the last item stops moving.
func (s *Service) Tail(ctx context.Context) (*core.Queue, error) {
	q := s.cache.Snapshot()
	if !q.IsActive() {
		return nil, spoolerrors.ErrNoActiveQueue
	}
	for range q.TotalCount {
		last := q.Last()
		if last == nil || q.Len() >= q.TotalCount {
			break
		}
		next, err := s.Window(ctx, last.ID)
		if err != nil {
			return nil, err
		}
		if tail := next.Last(); tail == nil || tail.ID == last.ID {
			return next, nil
		}
		q = next
	}
	return q, nil
}

// Add inserts library URIs into the active queue.
func (s *Service) Add(ctx context.Context, uris []string, at core.Placement) (*core.Queue, error) {
	id, err := s.activeID()
	if err != nil {
		return nil, err
	}
	tok := s.cache.Begin()
	q, err := s.remote.AddItems(ctx, id, uris, at)
	if err != nil {
		return nil, fmt.Errorf("add items: %w", err)
	}
	return s.commit(tok, q), nil
}

// Remove deletes one item from the active queue.
func (s *Service) Remove(ctx context.Context, itemID int64) (*core.Queue, error) {
	id, err := s.activeID()
	if err != nil {
		return nil, err
	}
	tok := s.cache.Begin()
	q, err := s.remote.RemoveItem(ctx, id, itemID)
	if err != nil {
		return nil, fmt.Errorf("remove item %d: %w", itemID, err)
	}
	return s.commit(tok, q), nil
}

// Move places one item after afterID, or at the front when afterID is 0.
func (s *Service) Move(ctx context.Context, itemID, afterID int64) (*core.Queue, error) {
	id, err := s.activeID()
	if err != nil {
		return nil, err
	}
	tok := s.cache.Begin()
	q, err := s.remote.MoveItem(ctx, id, itemID, afterID)
	if err != nil {
		return nil, fmt.Errorf("move item %d: %w", itemID, err)
	}
	return s.commit(tok, q), nil
}

// ToggleShuffle flips the shuffle state of the active queue.
func (s *Service) ToggleShuffle(ctx context.Context) (*core.Queue, error) {
	current := s.cache.Snapshot()
	if !current.IsActive() {
		return nil, spoolerrors.ErrNoActiveQueue
	}
	if !current.AllowShuffle {
		return nil, spoolerrors.ErrShuffleNotAllowed
	}
	tok := s.cache.Begin()
	q, err := s.remote.ToggleShuffle(ctx, current.ID, !current.Shuffled)
	if err != nil {
		return nil, fmt.Errorf("toggle shuffle: %w", err)
	}
	return s.commit(tok, q), nil
}

func (s *Service) activeID() (int64, error) {
	id := s.cache.QueueID()
	if id == core.NoQueue {
		return 0, spoolerrors.ErrNoActiveQueue
	}
	return id, nil
}

func (s *Service) fetchOptions(center int64) client.FetchOptions {
	return client.FetchOptions{Window: s.window, Center: center, Repeat: s.repeat()}
}

// commit writes q if its token is current and returns whatever the cache
// holds afterwards.
func (s *Service) commit(tok Token, q *core.Queue) *core.Queue {
	if s.cache.Commit(tok, q) {
		s.logger.Debug("queue committed", "id", q.ID, "version", q.Version, "items", q.Len(), "selected", q.SelectedItemID)
		return q
	}
	s.logger.Debug("discarding stale queue response", "id", q.ID, "version", q.Version)
	return s.cache.Snapshot()
}
