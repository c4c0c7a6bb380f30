// Package beepengine implements audio.Engine on top of the beep audio
// library. Tracks are fetched and decoded in the background and mixed
// back to back by a single streamer, so consecutive tracks play without a
// gap.
package beepengine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/tessro/spool/internal/audio"
	"github.com/tessro/spool/internal/logging"
)

const (
	// SampleRate is the output rate. Tracks at other rates are resampled.
	SampleRate = beep.SampleRate(44100)

	resampleQuality = 4
)

// Engine is a gapless track list played through one beep.Streamer.
//
// Every field below lock is guarded by it. In production lock is the
// speaker lock, which the speaker already holds while it calls Stream.
type Engine struct {
	lock    sync.Locker
	open    Opener
	rate    beep.SampleRate
	logger  *log.Logger
	events  *dispatcher
	release func()

	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup

	entries []*entry
	current int
	playing bool
	gain    float64
	closed  bool
}

var (
	_ audio.Engine  = (*Engine)(nil)
	_ beep.Streamer = (*Engine)(nil)
)

type entry struct {
	src     string
	stream  beep.StreamSeekCloser
	format  beep.Format
	out     *effects.Volume
	cancel  context.CancelFunc
	removed bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = logging.Component(l, "audio") }
}

// WithOpener replaces the HTTP track loader.
func WithOpener(o Opener) Option {
	return func(e *Engine) { e.open = o }
}

func newEngine(lock sync.Locker, rate beep.SampleRate, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		lock:   lock,
		open:   HTTPOpener(nil),
		rate:   rate,
		logger: logging.Discard(),
		events: newDispatcher(),
		ctx:    ctx,
		cancel: cancel,
		gain:   1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stream fills samples from the current track and moves on to the next
// one as soon as it drains. It must be called with the lock held.
func (e *Engine) Stream(samples [][2]float64) (int, bool) {
	filled := 0
	for filled < len(samples) && e.playing {
		cur := e.currentLocked()
		if cur == nil || cur.out == nil {
			break
		}
		n, ok := cur.out.Stream(samples[filled:])
		filled += n
		if ok && n > 0 {
			continue
		}
		if err := cur.stream.Err(); err != nil {
			src := cur.src
			e.events.push(func(h audio.EventHandler) { h.OnError(src, err) })
		}
		e.finishLocked(cur)
	}
	for i := filled; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (e *Engine) Err() error { return nil }

func (e *Engine) finishLocked(cur *entry) {
	src := cur.src
	e.current++
	e.events.push(func(h audio.EventHandler) { h.OnFinishedTrack(src) })
	if e.current >= len(e.entries) {
		e.playing = false
		e.events.push(func(h audio.EventHandler) { h.OnFinishedAll() })
	}
}

func (e *Engine) currentLocked() *entry {
	if e.current < 0 || e.current >= len(e.entries) {
		return nil
	}
	return e.entries[e.current]
}

func (e *Engine) indexLocked(ent *entry) int {
	for i, x := range e.entries {
		if x == ent {
			return i
		}
	}
	return -1
}

func (e *Engine) newEntryLocked(src string) *entry {
	ctx, cancel := context.WithCancel(e.ctx)
	ent := &entry{src: src, cancel: cancel}
	if !e.closed {
		e.loads.Add(1)
		go e.load(ctx, ent)
	}
	return ent
}

func (e *Engine) load(ctx context.Context, ent *entry) {
	defer e.loads.Done()
	stream, format, err := e.open(ctx, ent.src)

	e.lock.Lock()
	defer e.lock.Unlock()
	if ent.removed || e.closed {
		if stream != nil {
			_ = stream.Close()
		}
		return
	}
	if err != nil {
		e.logger.Warn("track failed to load", "src", ent.src, "err", err)
		src := ent.src
		e.events.push(func(h audio.EventHandler) { h.OnError(src, err) })
		return
	}

	ent.stream = stream
	ent.format = format
	ent.out = e.outputLocked(ent)
	idx, src := e.indexLocked(ent), ent.src
	e.logger.Debug("track loaded", "index", idx, "src", src, "rate", format.SampleRate)
	e.events.push(func(h audio.EventHandler) { h.OnLoad(idx, src) })
}

// outputLocked builds the resampled, volume-scaled view of a loaded track.
// It is rebuilt after every seek so the resampler holds no stale samples.
func (e *Engine) outputLocked(ent *entry) *effects.Volume {
	var s beep.Streamer = ent.stream
	if ent.format.SampleRate != e.rate {
		s = beep.Resample(resampleQuality, ent.format.SampleRate, e.rate, s)
	}
	v := &effects.Volume{Streamer: s, Base: 2}
	setGain(v, e.gain)
	return v
}

func setGain(v *effects.Volume, gain float64) {
	v.Silent = gain <= 0
	if gain > 0 {
		v.Volume = math.Log2(gain)
	}
}

func (e *Engine) dropLocked(ent *entry) {
	ent.removed = true
	ent.cancel()
	if ent.stream != nil {
		_ = ent.stream.Close()
		ent.stream = nil
		ent.out = nil
	}
}

func (e *Engine) seekLocked(ent *entry, pos time.Duration) {
	if ent.stream == nil {
		return
	}
	n := ent.format.SampleRate.N(pos)
	if last := ent.stream.Len() - 1; n > last {
		n = last
	}
	if n < 0 {
		n = 0
	}
	if err := ent.stream.Seek(n); err != nil {
		e.logger.Warn("seek failed", "src", ent.src, "err", err)
		return
	}
	ent.out = e.outputLocked(ent)
}

func (e *Engine) AddTrack(src string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.entries = append(e.entries, e.newEntryLocked(src))
}

func (e *Engine) InsertTrack(index int, src string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if index < 0 || index > len(e.entries) {
		index = len(e.entries)
	}
	ent := e.newEntryLocked(src)
	e.entries = append(e.entries[:index], append([]*entry{ent}, e.entries[index:]...)...)
	if index <= e.current && len(e.entries) > 1 {
		e.current++
	}
}

func (e *Engine) RemoveTrack(index int) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if index < 0 || index >= len(e.entries) {
		return
	}
	e.dropLocked(e.entries[index])
	e.entries = append(e.entries[:index], e.entries[index+1:]...)
	if index < e.current {
		e.current--
	}
	if e.current >= len(e.entries) {
		e.playing = false
	}
}

func (e *Engine) ReplaceTrack(index int, src string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if index < 0 || index >= len(e.entries) {
		return
	}
	e.dropLocked(e.entries[index])
	e.entries[index] = e.newEntryLocked(src)
}

func (e *Engine) RemoveAllTracks() {
	e.lock.Lock()
	defer e.lock.Unlock()
	for _, ent := range e.entries {
		e.dropLocked(ent)
	}
	e.entries = nil
	e.current = 0
	e.playing = false
}

func (e *Engine) GotoTrack(index int, play bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if index < 0 || index >= len(e.entries) {
		return
	}
	ent := e.entries[index]
	e.seekLocked(ent, 0)
	e.current = index
	e.setPlayingLocked(play)
}

func (e *Engine) Tracks() []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	out := make([]string, len(e.entries))
	for i, ent := range e.entries {
		out[i] = ent.src
	}
	return out
}

func (e *Engine) Play() {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.currentLocked() == nil {
		return
	}
	e.setPlayingLocked(true)
}

func (e *Engine) Pause() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.setPlayingLocked(false)
}

func (e *Engine) Stop() {
	e.lock.Lock()
	defer e.lock.Unlock()
	if cur := e.currentLocked(); cur != nil {
		e.seekLocked(cur, 0)
	}
	e.setPlayingLocked(false)
}

func (e *Engine) setPlayingLocked(play bool) {
	if e.playing == play {
		return
	}
	e.playing = play
	cur := e.currentLocked()
	if cur == nil {
		return
	}
	src := cur.src
	if play {
		e.events.push(func(h audio.EventHandler) { h.OnPlay(src) })
	} else {
		e.events.push(func(h audio.EventHandler) { h.OnPause(src) })
	}
}

func (e *Engine) Seek(position time.Duration) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if cur := e.currentLocked(); cur != nil {
		e.seekLocked(cur, position)
	}
}

// SetVolume sets the linear output gain for every track.
func (e *Engine) SetVolume(gain float64) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.gain = gain
	for _, ent := range e.entries {
		if ent.out != nil {
			setGain(ent.out, gain)
		}
	}
}

func (e *Engine) Position() time.Duration {
	e.lock.Lock()
	defer e.lock.Unlock()
	cur := e.currentLocked()
	if cur == nil || cur.stream == nil {
		return 0
	}
	return cur.format.SampleRate.D(cur.stream.Position())
}

func (e *Engine) Duration() time.Duration {
	e.lock.Lock()
	defer e.lock.Unlock()
	cur := e.currentLocked()
	if cur == nil || cur.stream == nil {
		return 0
	}
	return cur.format.SampleRate.D(cur.stream.Len())
}

func (e *Engine) IsPlaying() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.playing
}

func (e *Engine) Subscribe(h audio.EventHandler) {
	e.events.subscribe(h)
}

// Close stops output, cancels pending loads and releases every track.
func (e *Engine) Close() error {
	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		return nil
	}
	e.closed = true
	e.playing = false
	for _, ent := range e.entries {
		e.dropLocked(ent)
	}
	e.entries = nil
	e.lock.Unlock()

	if e.release != nil {
		e.release()
	}
	e.cancel()
	e.loads.Wait()
	e.events.close()
	return nil
}
