// Package playback keeps the audio engine's two-slot buffer in step with
// the remote play queue and turns engine callbacks into queue and
// timeline updates.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tessro/spool/internal/audio"
	"github.com/tessro/spool/internal/core"
	spoolerrors "github.com/tessro/spool/internal/errors"
	"github.com/tessro/spool/internal/logging"
	"github.com/tessro/spool/internal/settings"
)

// State is the adapter's session state.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "empty"
	}
}

const defaultSwitchTimeout = 15 * time.Second

// QueueCache is read for the queue the buffer should reflect.
type QueueCache interface {
	Snapshot() *core.Queue
	QueueID() int64
	Reset()
}

// Refresher re-fetches the active queue into the cache.
type Refresher interface {
	Refresh(ctx context.Context, center int64) (*core.Queue, error)
}

// Reporter receives timeline reports.
type Reporter interface {
	Report(ev core.TimelineEvent)
	StartHeartbeat(fn func() (core.TimelineEvent, bool))
	StopHeartbeat()
	Flush(ctx context.Context) error
}

// Preferences exposes the persisted volume and repeat mode.
type Preferences interface {
	Get() settings.Settings
}

// Adapter owns the audio engine for one session.
type Adapter struct {
	engine    audio.Engine
	buf       *Buffer
	cache     QueueCache
	refresher Refresher
	reporter  Reporter
	prefs     Preferences
	streamURL func(core.Track) string
	logger    *log.Logger
	onReset   func()
	timeout   time.Duration

	mu           sync.Mutex
	state        State
	generation   uint64
	seenSelected int64
	// resume is set when the current slot failed to load while playing.
	resume bool
	base   context.Context
}

var _ audio.EventHandler = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Adapter) { a.logger = logging.Component(l, "playback") }
}

// WithOnReset registers a hook run after the session resets.
func WithOnReset(fn func()) Option {
	return func(a *Adapter) { a.onReset = fn }
}

// WithSwitchTimeout bounds the flush and re-fetch after a track change.
func WithSwitchTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// New creates an adapter and subscribes it to engine events.
func New(engine audio.Engine, cache QueueCache, refresher Refresher, reporter Reporter, prefs Preferences, streamURL func(core.Track) string, opts ...Option) *Adapter {
	a := &Adapter{
		engine:    engine,
		buf:       NewBuffer(engine),
		cache:     cache,
		refresher: refresher,
		reporter:  reporter,
		prefs:     prefs,
		streamURL: streamURL,
		logger:    logging.Discard(),
		timeout:   defaultSwitchTimeout,
		base:      context.Background(),
	}
	for _, opt := range opts {
		opt(a)
	}
	engine.Subscribe(a)
	return a
}

// Prepare marks the adapter as loading while a queue is being fetched.
func (a *Adapter) Prepare() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateEmpty {
		a.state = StateLoading
	}
}

// Abort undoes Prepare after a failed fetch.
func (a *Adapter) Abort() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateLoading && a.buf.Current() == nil {
		a.state = StateEmpty
	}
}

// Start loads the selected item of the cached queue and its successor.
// With autoplay the item starts playing and is reported; without it the
// buffer is hydrated silently and left paused.
func (a *Adapter) Start(ctx context.Context, autoplay bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	q := a.cache.Snapshot()
	if !q.IsActive() {
		return spoolerrors.ErrNoActiveQueue
	}
	sel := q.Selected()
	if sel == nil {
		return fmt.Errorf("%w: selected item %d", spoolerrors.ErrItemNotFound, q.SelectedItemID)
	}

	a.base = ctx
	if cur := a.buf.Current(); cur != nil {
		a.reporter.StopHeartbeat()
		a.reporter.Report(a.eventLocked(cur.Item, core.StatusStopped, a.engine.Position()))
	}
	a.seenSelected = q.SelectedItemID
	a.loadLocked(q, *sel, autoplay)
	a.logger.Info("playback started", "queue", q.ID, "item", sel.ID, "title", sel.Track.Title, "autoplay", autoplay)
	return nil
}

// Update reconciles the buffer with the cached queue without interrupting
// the playing slot. Calling it again with an unchanged queue is a no-op.
func (a *Adapter) Update() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateEmpty || a.state == StateLoading {
		return
	}
	a.reconcileLocked(a.cache.Snapshot())
}

// Jump starts playing itemID from the cached queue.
func (a *Adapter) Jump(ctx context.Context, itemID int64) error {
	a.mu.Lock()
	if a.state == StateEmpty {
		a.mu.Unlock()
		return spoolerrors.ErrNoActiveQueue
	}
	q := a.cache.Snapshot()
	item := q.Item(itemID)
	if item == nil {
		a.mu.Unlock()
		return fmt.Errorf("%w: %d", spoolerrors.ErrItemNotFound, itemID)
	}
	gen := a.generation
	a.beginSwitchLocked(*item, false, a.playingLocked())
	a.mu.Unlock()

	return a.finishSwitch(ctx, gen, itemID)
}

// Play resumes playback.
func (a *Adapter) Play() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StatePaused || a.buf.Current() == nil {
		return
	}
	a.engine.Play()
	a.markPlayingLocked()
}

// Pause pauses playback.
func (a *Adapter) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StatePlaying {
		return
	}
	a.engine.Pause()
	a.markPausedLocked()
}

// TogglePlay flips between playing and paused.
func (a *Adapter) TogglePlay() {
	a.mu.Lock()
	playing := a.state == StatePlaying
	a.mu.Unlock()
	if playing {
		a.Pause()
	} else {
		a.Play()
	}
}

// Seek moves the playhead of the current item and reports it.
func (a *Adapter) Seek(position time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.buf.Current()
	if cur == nil || (a.state != StatePlaying && a.state != StatePaused) {
		return
	}
	if position < 0 {
		position = 0
	}
	a.engine.Seek(position)
	if a.state == StatePlaying {
		a.reporter.Report(a.eventLocked(cur.Item, core.StatusPlaying, position))
		a.startHeartbeatLocked()
		return
	}
	a.reporter.Report(a.eventLocked(cur.Item, core.StatusPaused, position))
}

// ApplyVolume recomputes the engine gain from the stored volume and the
// now-playing item.
func (a *Adapter) ApplyVolume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applyVolumeLocked()
}

// Reset stops playback and discards the queue.
func (a *Adapter) Reset() {
	a.mu.Lock()
	did := a.resetLocked(a.engine.Position())
	a.mu.Unlock()
	if did {
		a.afterReset()
	}
}

// Shutdown stops playback and reports it without discarding the queue, so
// the session can be restored later.
func (a *Adapter) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reporter.StopHeartbeat()
	if cur := a.buf.Current(); cur != nil && a.state != StateEmpty {
		a.reporter.Report(a.eventLocked(cur.Item, core.StatusStopped, a.engine.Position()))
	}
	a.engine.Stop()
	a.buf.Clear()
	a.state = StateEmpty
	a.resume = false
	a.generation++
}

// Status returns the session state.
func (a *Adapter) Status() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// BufferState returns the state of the two-slot buffer.
func (a *Adapter) BufferState() BufferState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.State()
}

// NowPlaying returns the item in the current slot, or nil.
func (a *Adapter) NowPlaying() *core.QueueItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.buf.Current()
	if cur == nil {
		return nil
	}
	item := cur.Item
	return &item
}

// State returns the player state derived from the engine.
func (a *Adapter) State() core.PlayerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := core.PlayerState{IsPlaying: a.state == StatePlaying}
	cur := a.buf.Current()
	if cur == nil {
		return st
	}
	st.Position = a.engine.Position()
	st.Duration = a.engine.Duration()
	if st.Duration == 0 {
		st.Duration = cur.Item.Track.Duration
	}
	return st
}

// OnLoad implements audio.EventHandler.
func (a *Adapter) OnLoad(index int, src string) {
	a.logger.Debug("track loaded", "slot", index, "src", src)
}

// OnPlay implements audio.EventHandler. It tracks playback started from
// outside the adapter, such as media keys.
func (a *Adapter) OnPlay(src string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.buf.Current()
	if cur == nil || cur.Src != src || a.state != StatePaused {
		return
	}
	a.markPlayingLocked()
}

// OnPause implements audio.EventHandler.
func (a *Adapter) OnPause(src string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.buf.Current()
	if cur == nil || cur.Src != src || a.state != StatePlaying {
		return
	}
	a.markPausedLocked()
}

// OnFinishedTrack implements audio.EventHandler. It advances to the
// successor or, when there is none, resets the session.
func (a *Adapter) OnFinishedTrack(src string) {
	a.mu.Lock()
	cur := a.buf.Current()
	if a.state == StateEmpty || cur == nil || cur.Src != src {
		a.mu.Unlock()
		return
	}

	var incoming *core.QueueItem
	if next := a.buf.Next(); next != nil {
		item := next.Item
		incoming = &item
	} else {
		incoming = a.cache.Snapshot().After(cur.Item.ID, a.prefs.Get().Repeat)
	}

	if incoming == nil {
		did := a.resetLocked(cur.Item.Track.Duration)
		a.mu.Unlock()
		if did {
			a.afterReset()
		}
		return
	}

	gen := a.generation
	a.beginSwitchLocked(*incoming, true, true)
	base := a.base
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(base, a.timeout)
	defer cancel()
	if err := a.finishSwitch(ctx, gen, incoming.ID); err != nil {
		a.logger.Warn("queue refresh after track change failed", "item", incoming.ID, "err", err)
	}
}

// OnFinishedAll implements audio.EventHandler. The engine running dry with
// nothing loaded ends the session.
func (a *Adapter) OnFinishedAll() {
	a.mu.Lock()
	if a.state == StateEmpty || a.buf.Current() != nil {
		a.mu.Unlock()
		return
	}
	did := a.resetLocked(0)
	a.mu.Unlock()
	if did {
		a.afterReset()
	}
}

// OnError implements audio.EventHandler. The failed slot is left empty and
// retried on the next reconcile.
func (a *Adapter) OnError(src string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.buf.Current() != nil && a.buf.Current().Src == src:
		a.logger.Warn("failed to load current track", "item", a.buf.Current().Item.ID, "err", err)
		a.reporter.StopHeartbeat()
		a.buf.Clear()
		a.resume = a.playingLocked()
		a.state = StatePaused
	case a.buf.Next() != nil && a.buf.Next().Src == src:
		a.logger.Warn("failed to load next track", "item", a.buf.Next().Item.ID, "err", err)
		a.buf.ClearNext()
	default:
		a.logger.Debug("ignoring error for unloaded source", "src", src, "err", err)
	}
}

// beginSwitchLocked moves playback from the current slot to incoming.
// engineAdvanced means the engine already moved on by itself.
func (a *Adapter) beginSwitchLocked(incoming core.QueueItem, engineAdvanced, play bool) {
	a.resume = false
	a.reporter.StopHeartbeat()
	if cur := a.buf.Current(); cur != nil {
		pos := a.engine.Position()
		if engineAdvanced {
			pos = cur.Item.Track.Duration
		}
		a.reporter.Report(a.eventLocked(cur.Item, core.StatusStopped, pos))
	}

	next := a.buf.Next()
	preloaded := next != nil && next.Item.ID == incoming.ID
	switch {
	case preloaded && engineAdvanced:
		a.buf.Advance()
	case preloaded:
		a.engine.GotoTrack(1, play)
		a.buf.Advance()
	default:
		a.buf.Load(*a.slotFor(&incoming), nil)
		if play {
			a.engine.Play()
		}
	}

	a.applyVolumeLocked()
	if play {
		a.state = StatePlaying
		a.reporter.Report(a.eventLocked(incoming, core.StatusPlaying, 0))
	} else {
		a.state = StatePaused
		a.reporter.Report(a.eventLocked(incoming, core.StatusPaused, 0))
	}
}

// finishSwitch waits for the reports above to reach the server, which
// moves its selection, then re-fetches and refills the next slot.
func (a *Adapter) finishSwitch(ctx context.Context, gen uint64, center int64) error {
	if err := a.reporter.Flush(ctx); err != nil {
		a.logger.Debug("timeline flush interrupted", "err", err)
	}
	_, err := a.refresher.Refresh(ctx, center)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation != gen || a.state == StateEmpty {
		return err
	}
	a.reconcileLocked(a.cache.Snapshot())
	if a.state == StatePlaying {
		a.startHeartbeatLocked()
	}
	return err
}

func (a *Adapter) reconcileLocked(q *core.Queue) {
	if !q.IsActive() {
		return
	}
	cur := a.buf.Current()
	sel := q.Selected()

	// The selection moved somewhere other than what is playing.
	if sel != nil && q.SelectedItemID != a.seenSelected && (cur == nil || cur.Item.ID != sel.ID) {
		a.seenSelected = q.SelectedItemID
		a.logger.Debug("selection changed, jumping", "item", sel.ID)
		a.beginSwitchLocked(*sel, false, a.playingLocked())
		a.buf.SetNext(a.slotFor(q.After(sel.ID, a.prefs.Get().Repeat)))
		if a.state == StatePlaying {
			a.startHeartbeatLocked()
		}
		return
	}
	a.seenSelected = q.SelectedItemID

	if cur == nil {
		if sel == nil {
			return
		}
		a.logger.Debug("reloading empty buffer", "item", sel.ID)
		a.loadLocked(q, *sel, a.playingLocked())
		return
	}

	if q.IndexOf(cur.Item.ID) < 0 {
		return
	}
	if a.buf.SetNext(a.slotFor(q.After(cur.Item.ID, a.prefs.Get().Repeat))) {
		a.logger.Debug("next slot updated", "buffer", a.buf.State())
	}
}

func (a *Adapter) loadLocked(q *core.Queue, item core.QueueItem, play bool) {
	a.resume = false
	a.buf.Load(*a.slotFor(&item), a.slotFor(q.After(item.ID, a.prefs.Get().Repeat)))
	a.applyVolumeLocked()
	if play {
		a.engine.Play()
		a.markPlayingLocked()
		return
	}
	a.state = StatePaused
}

// resetLocked ends the session once. It reports whether anything changed.
func (a *Adapter) resetLocked(pos time.Duration) bool {
	if a.state == StateEmpty && a.cache.QueueID() == core.NoQueue {
		return false
	}
	a.reporter.StopHeartbeat()
	if cur := a.buf.Current(); cur != nil && a.state != StateEmpty {
		a.reporter.Report(a.eventLocked(cur.Item, core.StatusStopped, pos))
	}
	a.engine.Stop()
	a.buf.Clear()
	a.cache.Reset()
	a.generation++
	a.state = StateEmpty
	a.resume = false
	a.seenSelected = 0
	a.logger.Info("playback session reset")
	return true
}

func (a *Adapter) afterReset() {
	if a.onReset != nil {
		a.onReset()
	}
}

// playingLocked reports whether playback should continue after a reload.
func (a *Adapter) playingLocked() bool {
	return a.state == StatePlaying || a.resume
}

func (a *Adapter) markPlayingLocked() {
	a.state = StatePlaying
	if cur := a.buf.Current(); cur != nil {
		a.reporter.Report(a.eventLocked(cur.Item, core.StatusPlaying, a.engine.Position()))
	}
	a.startHeartbeatLocked()
}

func (a *Adapter) markPausedLocked() {
	a.state = StatePaused
	a.reporter.StopHeartbeat()
	if cur := a.buf.Current(); cur != nil {
		a.reporter.Report(a.eventLocked(cur.Item, core.StatusPaused, a.engine.Position()))
	}
}

func (a *Adapter) startHeartbeatLocked() {
	a.reporter.StartHeartbeat(a.heartbeat)
}

func (a *Adapter) heartbeat() (core.TimelineEvent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.buf.Current()
	if a.state != StatePlaying || cur == nil {
		return core.TimelineEvent{}, false
	}
	return a.eventLocked(cur.Item, core.StatusPlaying, a.engine.Position()), true
}

func (a *Adapter) applyVolumeLocked() {
	var gainDB *float64
	if cur := a.buf.Current(); cur != nil {
		gainDB = cur.Item.Track.GainDB
	}
	a.engine.SetVolume(Gain(a.prefs.Get().Volume, gainDB))
}

func (a *Adapter) eventLocked(item core.QueueItem, status core.PlaybackStatus, pos time.Duration) core.TimelineEvent {
	return core.TimelineEvent{
		QueueItemID: item.ID,
		Status:      status,
		Position:    pos,
		Track:       item.Track,
	}
}

func (a *Adapter) slotFor(item *core.QueueItem) *Slot {
	if item == nil {
		return nil
	}
	return &Slot{Item: *item, Src: a.streamURL(item.Track)}
}
