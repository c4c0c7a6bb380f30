package beepengine

import (
	"sync"

	"github.com/tessro/spool/internal/audio"
)

// dispatcher delivers engine events on its own goroutine. push never
// blocks, so it is safe to call while the speaker lock is held.
type dispatcher struct {
	mu      sync.Mutex
	queue   []func(audio.EventHandler)
	handler audio.EventHandler
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) subscribe(h audio.EventHandler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

func (d *dispatcher) push(fn func(audio.EventHandler)) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.stopped)
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}

		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			fn := d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
			h := d.handler
			d.mu.Unlock()

			if h != nil {
				fn(h)
			}
		}
	}
}

// close stops delivery. Queued events are dropped.
func (d *dispatcher) close() {
	d.once.Do(func() {
		close(d.done)
		<-d.stopped
	})
}
