package session

import (
	"fmt"
	"sync"

	spoolerrors "github.com/tessro/spool/internal/errors"
)

// Guard keeps each named action to one request at a time.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewGuard creates an idle guard.
func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// Acquire marks action as in flight. The returned release must be called
// when the request completes, whatever its outcome; calling it more than
// once is harmless.
func (g *Guard) Acquire(action string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[action]; busy {
		return nil, fmt.Errorf("%w: %s", spoolerrors.ErrActionInFlight, action)
	}
	g.inFlight[action] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, action)
			g.mu.Unlock()
		})
	}, nil
}

// Busy reports whether action is in flight.
func (g *Guard) Busy(action string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[action]
	return busy
}
