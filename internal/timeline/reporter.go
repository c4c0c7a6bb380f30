// Package timeline delivers playback progress reports to the media server.
package timeline

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tessro/spool/internal/core"
	"github.com/tessro/spool/internal/logging"
	"golang.org/x/time/rate"
)

const (
	DefaultInterval  = 10 * time.Second
	DefaultRate      = 4
	DefaultBurst     = 4
	DefaultQueueSize = 32

	sendTimeout = 10 * time.Second
)

// Sender delivers one report.
type Sender interface {
	ReportTimeline(ctx context.Context, ev core.TimelineEvent) error
}

// job is either a report or a flush marker.
type job struct {
	ev      core.TimelineEvent
	flushed chan struct{}
}

// Reporter sends timeline reports in the order they are enqueued. Report
// never blocks the caller; a single worker started by Run delivers them.
type Reporter struct {
	sender   Sender
	logger   *log.Logger
	interval time.Duration
	limiter  *rate.Limiter
	jobs     chan job

	hbMu   sync.Mutex
	hbStop chan struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithInterval sets the heartbeat period.
func WithInterval(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRate sets the delivery throttle. A non-positive limit disables it.
func WithRate(limit float64, burst int) Option {
	return func(r *Reporter) {
		if limit <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

// WithQueueSize sets how many reports may wait for delivery.
func WithQueueSize(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.jobs = make(chan job, n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Reporter) { r.logger = logging.Component(l, "timeline") }
}

// New creates a reporter. Call Run to start delivery.
func New(sender Sender, opts ...Option) *Reporter {
	r := &Reporter{
		sender:   sender,
		logger:   logging.Discard(),
		interval: DefaultInterval,
		limiter:  rate.NewLimiter(DefaultRate, DefaultBurst),
		jobs:     make(chan job, DefaultQueueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run delivers reports until ctx is done or Stop is called.
func (r *Reporter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case j := <-r.jobs:
			if j.flushed != nil {
				close(j.flushed)
				continue
			}
			r.deliver(ctx, j.ev)
		}
	}
}

func (r *Reporter) deliver(ctx context.Context, ev core.TimelineEvent) {
	if err := r.limiter.Wait(ctx); err != nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := r.sender.ReportTimeline(sendCtx, ev); err != nil {
		r.logger.Debug("timeline report failed", "item", ev.QueueItemID, "state", ev.Status, "err", err)
		return
	}
	r.logger.Debug("timeline reported", "item", ev.QueueItemID, "state", ev.Status, "time", ev.Position)
}

// Report enqueues ev. If the queue is full the report is dropped.
func (r *Reporter) Report(ev core.TimelineEvent) {
	select {
	case r.jobs <- job{ev: ev}:
	default:
		r.logger.Warn("timeline queue full, dropping report", "item", ev.QueueItemID, "state", ev.Status)
	}
}

// Flush waits until every report enqueued before the call has been
// attempted.
func (r *Reporter) Flush(ctx context.Context) error {
	marker := make(chan struct{})
	select {
	case r.jobs <- job{flushed: marker}:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return nil
	}
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return nil
	}
}

// StartHeartbeat reports fn's event every interval until StopHeartbeat or
// another StartHeartbeat. fn returning false skips that tick.
func (r *Reporter) StartHeartbeat(fn func() (core.TimelineEvent, bool)) {
	stop := make(chan struct{})

	r.hbMu.Lock()
	if r.hbStop != nil {
		close(r.hbStop)
	}
	r.hbStop = stop
	r.hbMu.Unlock()

	go r.heartbeat(stop, fn)
}

func (r *Reporter) heartbeat(stop chan struct{}, fn func() (core.TimelineEvent, bool)) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-r.done:
			return
		case <-ticker.C:
			ev, ok := fn()
			if !ok {
				continue
			}
			// A tick racing with StopHeartbeat must not land after the
			// report that replaced it.
			r.hbMu.Lock()
			if r.hbStop == stop {
				r.Report(ev)
			}
			r.hbMu.Unlock()
		}
	}
}

// StopHeartbeat cancels the running heartbeat, if any.
func (r *Reporter) StopHeartbeat() {
	r.hbMu.Lock()
	defer r.hbMu.Unlock()
	if r.hbStop != nil {
		close(r.hbStop)
		r.hbStop = nil
	}
}

// HeartbeatRunning reports whether a heartbeat is active.
func (r *Reporter) HeartbeatRunning() bool {
	r.hbMu.Lock()
	defer r.hbMu.Unlock()
	return r.hbStop != nil
}

// Stop ends delivery and the heartbeat. Pending reports are discarded.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		r.StopHeartbeat()
		close(r.done)
	})
}
