// Package session wires the queue, playback and timeline components into
// one object that lives for the duration of a program run.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tessro/spool/internal/audio"
	"github.com/tessro/spool/internal/config"
	"github.com/tessro/spool/internal/core"
	"github.com/tessro/spool/internal/dragdrop"
	spoolerrors "github.com/tessro/spool/internal/errors"
	"github.com/tessro/spool/internal/logging"
	"github.com/tessro/spool/internal/playback"
	"github.com/tessro/spool/internal/plex/client"
	"github.com/tessro/spool/internal/queue"
	"github.com/tessro/spool/internal/settings"
	"github.com/tessro/spool/internal/timeline"
)

const (
	// restartThreshold is how far into a track Previous restarts it
	// instead of going back.
	restartThreshold = 3 * time.Second

	closeFlushTimeout = 2 * time.Second
)

// Action names used with the in-flight guard.
const (
	ActionPlay     = "play"
	ActionJump     = "jump"
	ActionNext     = "next"
	ActionPrevious = "previous"
	ActionAdd      = "add"
	ActionRemove   = "remove"
	ActionMove     = "move"
	ActionShuffle  = "shuffle"
	ActionRepeat   = "repeat"
)

// Session owns every playback component for one run.
type Session struct {
	cfg      *config.Config
	store    *settings.Store
	logger   *log.Logger
	client   *client.Client
	cache    *queue.Cache
	queue    *queue.Service
	engine   audio.Engine
	player   *playback.Adapter
	timeline *timeline.Reporter
	editor   *dragdrop.Editor
	guard    *Guard

	ended chan struct{}

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ core.Controller = (*Session)(nil)

// Option configures a Session.
type Option func(*options)

type options struct {
	logger     *log.Logger
	httpClient *http.Client
	retryWait  time.Duration
}

// WithLogger sets the root logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient replaces the HTTP client used for server calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithRetryWait overrides the client's retry backoff.
func WithRetryWait(d time.Duration) Option {
	return func(o *options) { o.retryWait = d }
}

func buildOptions(cfg *config.Config, opts []Option) options {
	o := options{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: time.Duration(cfg.Server.Timeout) * time.Second}
	}
	return o
}

func newClient(cfg *config.Config, store *settings.Store, o options) *client.Client {
	clientOpts := []client.Option{
		client.WithToken(cfg.Server.Token),
		client.WithClientID(store.Get().ClientID),
		client.WithProduct(cfg.Server.Product),
		client.WithHTTPClient(o.httpClient),
		client.WithLogger(o.logger),
	}
	if o.retryWait > 0 {
		clientOpts = append(clientOpts, client.WithRetryWait(o.retryWait))
	}
	return client.New(cfg.Server.URL, clientOpts...)
}

func newQueueService(c *client.Client, cache *queue.Cache, cfg *config.Config, store *settings.Store, o options) *queue.Service {
	return queue.NewService(c, cache,
		queue.WithWindow(cfg.Playback.Window),
		queue.WithRepeat(func() core.RepeatMode { return store.Get().Repeat }),
		queue.WithLogger(o.logger),
	)
}

// New builds a session. The settings store must already be loaded.
func New(cfg *config.Config, store *settings.Store, engine audio.Engine, opts ...Option) *Session {
	o := buildOptions(cfg, opts)

	s := &Session{
		cfg:    cfg,
		store:  store,
		logger: logging.Component(o.logger, "session"),
		engine: engine,
		cache:  queue.NewCache(),
		guard:  NewGuard(),
		ended:  make(chan struct{}, 1),
	}

	s.client = newClient(cfg, store, o)
	s.queue = newQueueService(s.client, s.cache, cfg, store, o)

	s.timeline = timeline.New(s.client,
		timeline.WithInterval(time.Duration(cfg.Playback.HeartbeatInterval)*time.Millisecond),
		timeline.WithRate(cfg.Timeline.Rate, cfg.Timeline.Burst),
		timeline.WithQueueSize(cfg.Timeline.Queue),
		timeline.WithLogger(o.logger),
	)

	s.player = playback.New(engine, s.cache, s.queue, s.timeline, store, s.client.StreamURL,
		playback.WithLogger(o.logger),
		playback.WithOnReset(s.sessionEnded),
	)

	s.editor = dragdrop.New(s.client, s.cache, s.queue,
		dragdrop.WithPlayer(s.player),
		dragdrop.WithLogger(o.logger),
	)

	return s
}

// Start runs the background workers until Close.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.timeline.Run(ctx)
	}()

	if s.cfg.Settings.Watch {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.store.Watch(ctx, s.logger, s.settingsChanged); err != nil {
				s.logger.Warn("settings watcher stopped", "err", err)
			}
		}()
	}
}

// Close stops playback, delivers the final report and releases the
// engine. The queue ID stays saved so the next run can restore it.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.player.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
		if ferr := s.timeline.Flush(ctx); ferr != nil {
			s.logger.Debug("final timeline flush incomplete", "err", ferr)
		}
		cancel()

		s.timeline.Stop()
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		err = s.engine.Close()
	})
	return err
}

// Ended is signaled when the queue plays out or is reset.
func (s *Session) Ended() <-chan struct{} {
	return s.ended
}

// Guard exposes the in-flight guard so a UI can disable busy controls.
func (s *Session) Guard() *Guard {
	return s.guard
}

// Client returns the media server client.
func (s *Session) Client() *client.Client {
	return s.client
}

// Status returns the playback state.
func (s *Session) Status() playback.State {
	return s.player.Status()
}

// Settings returns the current local settings.
func (s *Session) Settings() settings.Settings {
	return s.store.Get()
}

// Queue returns a copy of the cached queue, or nil.
func (s *Session) Queue() *core.Queue {
	return s.cache.Snapshot()
}

// NowPlaying returns the item in the current slot, or nil.
func (s *Session) NowPlaying() *core.QueueItem {
	return s.player.NowPlaying()
}

// PlayerState returns the engine-derived player state.
func (s *Session) PlayerState() core.PlayerState {
	return s.player.State()
}

// PlayURI replaces any active queue with one built from uri and plays it.
func (s *Session) PlayURI(ctx context.Context, uri string, shuffle bool, startKey string) error {
	release, err := s.guard.Acquire(ActionPlay)
	if err != nil {
		return err
	}
	defer release()

	s.player.Prepare()
	q, err := s.queue.Build(ctx, uri, shuffle, startKey)
	if err != nil {
		s.player.Abort()
		return err
	}
	if !q.IsActive() {
		s.player.Abort()
		return spoolerrors.ErrNoActiveQueue
	}

	s.player.Reset()
	// Replacing a queue is not the end of the session.
	select {
	case <-s.ended:
	default:
	}
	s.queue.Install(q)
	s.rememberQueue(q.ID)

	return s.player.Start(ctx, s.cfg.Playback.Autoplay)
}

// Restore re-fetches the queue saved by a previous run and loads it
// without playing.
func (s *Session) Restore(ctx context.Context) error {
	id := s.store.Get().LastQueueID
	if id == core.NoQueue {
		return spoolerrors.ErrNoActiveQueue
	}

	release, err := s.guard.Acquire(ActionPlay)
	if err != nil {
		return err
	}
	defer release()

	s.player.Prepare()
	if _, err := s.queue.Load(ctx, id); err != nil {
		s.player.Abort()
		if client.IsNotFound(err) {
			s.logger.Info("saved queue no longer exists", "queue", id)
			s.forgetQueue()
		}
		return err
	}
	return s.player.Start(ctx, false)
}

// PlayQueueItem starts playing an item of the active queue.
func (s *Session) PlayQueueItem(ctx context.Context, itemID int64) error {
	release, err := s.guard.Acquire(ActionJump)
	if err != nil {
		return err
	}
	defer release()
	return s.player.Jump(ctx, itemID)
}

// AddToQueue inserts library URIs into the active queue.
func (s *Session) AddToQueue(ctx context.Context, uris []string, at core.Placement) error {
	release, err := s.guard.Acquire(ActionAdd)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.queue.Add(ctx, uris, at); err != nil {
		return err
	}
	s.player.Update()
	return nil
}

// InsertTracks drops new library URIs at target.
func (s *Session) InsertTracks(ctx context.Context, uris []string, target core.DropTarget) error {
	release, err := s.guard.Acquire(ActionAdd)
	if err != nil {
		return err
	}
	defer release()
	return s.editor.InsertTracks(ctx, uris, target)
}

// RemoveFromQueue deletes an item that is not playing.
func (s *Session) RemoveFromQueue(ctx context.Context, itemID int64) error {
	release, err := s.guard.Acquire(ActionRemove)
	if err != nil {
		return err
	}
	defer release()

	if np := s.player.NowPlaying(); np != nil && np.ID == itemID {
		return spoolerrors.ErrCannotRemoveCurrent
	}
	if _, err := s.queue.Remove(ctx, itemID); err != nil {
		return err
	}
	s.player.Update()
	return nil
}

// MoveTrack reorders a batch of items to target.
func (s *Session) MoveTrack(ctx context.Context, itemIDs []int64, target core.DropTarget) error {
	release, err := s.guard.Acquire(ActionMove)
	if err != nil {
		return err
	}
	defer release()
	return s.editor.Drop(ctx, itemIDs, target)
}

// ToggleShuffle shuffles or unshuffles the active queue.
func (s *Session) ToggleShuffle(ctx context.Context) error {
	release, err := s.guard.Acquire(ActionShuffle)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.queue.ToggleShuffle(ctx); err != nil {
		return err
	}
	s.player.Update()
	return nil
}

// Next skips to the following item. Repeat-one does not hold a manual
// skip on the same item.
func (s *Session) Next(ctx context.Context) error {
	release, err := s.guard.Acquire(ActionNext)
	if err != nil {
		return err
	}
	defer release()

	np := s.player.NowPlaying()
	if np == nil {
		return spoolerrors.ErrNoActiveQueue
	}
	repeat := s.store.Get().Repeat
	if repeat == core.RepeatOne {
		repeat = core.RepeatOff
	}
	next := s.cache.Snapshot().After(np.ID, repeat)
	if next == nil {
		return fmt.Errorf("%w: nothing after item %d", spoolerrors.ErrItemNotFound, np.ID)
	}
	return s.player.Jump(ctx, next.ID)
}

// Previous restarts the current item, or goes back one when close to its
// start.
func (s *Session) Previous(ctx context.Context) error {
	release, err := s.guard.Acquire(ActionPrevious)
	if err != nil {
		return err
	}
	defer release()

	np := s.player.NowPlaying()
	if np == nil {
		return spoolerrors.ErrNoActiveQueue
	}
	if s.player.State().Position > restartThreshold {
		s.player.Seek(0)
		return nil
	}

	q := s.cache.Snapshot()
	prev := q.Before(np.ID)
	if prev == nil && s.store.Get().Repeat == core.RepeatAll {
		prev = q.Last()
	}
	if prev == nil || prev.ID == np.ID {
		s.player.Seek(0)
		return nil
	}
	return s.player.Jump(ctx, prev.ID)
}

// TogglePlay pauses or resumes.
func (s *Session) TogglePlay() {
	s.player.TogglePlay()
}

// Seek moves the playhead.
func (s *Session) Seek(position time.Duration) {
	s.player.Seek(position)
}

// SetVolume stores the volume and applies it.
func (s *Session) SetVolume(volume int) error {
	if err := s.store.Update(func(st *settings.Settings) { st.Volume = volume }); err != nil {
		return fmt.Errorf("save volume: %w", err)
	}
	s.player.ApplyVolume()
	return nil
}

// SetRepeat stores the repeat mode and re-fetches the queue so the server
// sees it.
func (s *Session) SetRepeat(ctx context.Context, mode core.RepeatMode) error {
	release, err := s.guard.Acquire(ActionRepeat)
	if err != nil {
		return err
	}
	defer release()

	if err := s.store.Update(func(st *settings.Settings) { st.Repeat = mode }); err != nil {
		return fmt.Errorf("save repeat mode: %w", err)
	}
	if s.cache.QueueID() == core.NoQueue {
		return nil
	}
	if _, err := s.queue.Refresh(ctx, 0); err != nil {
		s.logger.Warn("refresh after repeat change failed", "err", err)
	}
	s.player.Update()
	return nil
}

// Reset stops playback and discards the queue.
func (s *Session) Reset() {
	s.player.Reset()
}

func (s *Session) settingsChanged(st settings.Settings) {
	s.logger.Debug("settings changed on disk", "volume", st.Volume, "repeat", st.Repeat)
	s.player.ApplyVolume()
	s.player.Update()
}

func (s *Session) sessionEnded() {
	s.forgetQueue()
	select {
	case s.ended <- struct{}{}:
	default:
	}
}

func (s *Session) rememberQueue(id int64) {
	if err := s.store.Update(func(st *settings.Settings) { st.LastQueueID = id }); err != nil {
		s.logger.Warn("failed to save queue id", "queue", id, "err", err)
	}
}

func (s *Session) forgetQueue() {
	if err := s.store.Update(func(st *settings.Settings) { st.LastQueueID = core.NoQueue }); err != nil {
		s.logger.Warn("failed to clear queue id", "err", err)
	}
}
