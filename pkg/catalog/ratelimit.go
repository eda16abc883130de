package catalog

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Response headers the catalog uses to signal rate-limit state.
const (
	headerRateRemaining = "X-Ratelimit-Remaining"
	headerRateReset     = "X-Ratelimit-Reset"
)

// defaultRemaining is assumed before the first response is seen.
const defaultRemaining = 500

// rateGate tracks the catalog's rate-limit budget. It is read before every
// request and updated from the headers of every response, so all requests
// through one client share a single budget regardless of goroutine.
type rateGate struct {
	mu        sync.Mutex
	remaining int
	resetAt   time.Time

	// now is replaceable in tests.
	now func() time.Time
}

func newRateGate() *rateGate {
	return &rateGate{remaining: defaultRemaining, now: time.Now}
}

// wait blocks until a request is allowed to proceed. When the budget is
// exhausted it sleeps until the reset timestamp elapses; the sleep is
// cancellable through ctx.
func (g *rateGate) wait(ctx context.Context) error {
	g.mu.Lock()
	remaining := g.remaining
	delay := g.resetAt.Sub(g.now())
	g.mu.Unlock()

	if remaining > 0 || delay <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// pending returns the remaining budget and the wait until reset, for logging.
func (g *rateGate) pending() (remaining int, until time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining, max(g.resetAt.Sub(g.now()), 0)
}

// update records the latest rate-limit headers. Absent or malformed headers
// leave the corresponding field untouched.
func (g *rateGate) update(h http.Header) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if v, err := strconv.Atoi(h.Get(headerRateRemaining)); err == nil {
		g.remaining = v
	}
	if v, err := strconv.ParseInt(h.Get(headerRateReset), 10, 64); err == nil {
		g.resetAt = time.Unix(v, 0)
	}
}
