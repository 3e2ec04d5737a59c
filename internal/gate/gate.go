// Package gate bounds the number of requests inside the pipeline at once.
package gate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"dirshare/internal/logging"
	"dirshare/internal/metrics"
)

// DefaultLimit is the in-flight cap used when none is configured.
const DefaultLimit = 64

// StatusClientClosedRequest is recorded for a client that left while
// queued. Nothing reaches the client; the code only shows up in logs and
// metrics.
const StatusClientClosedRequest = 499

// Gate admits requests in arrival order. Excess requests wait for a slot
// instead of being turned away.
type Gate struct {
	sem   *semaphore.Weighted
	limit int64
}

// New returns a gate admitting at most limit concurrent holders.
func New(limit int) (*Gate, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("gate: limit must be positive, got %d", limit)
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit)), limit: int64(limit)}, nil
}

// Limit returns the configured cap.
func (g *Gate) Limit() int { return int(g.limit) }

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	start := time.Now()
	metrics.GateQueued()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		metrics.GateAbandoned()
		return err
	}
	metrics.GateAdmitted(time.Since(start))
	return nil
}

// Release returns a slot taken by Acquire.
func (g *Gate) Release() {
	g.sem.Release(1)
	metrics.GateReleased()
}

// Middleware holds a slot for the whole handler call, body streaming
// included. A client that leaves while queued never takes a slot.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.Acquire(r.Context()); err != nil {
			logging.WithContext(r.Context()).Debug("client left while queued", logging.Err(err))
			w.WriteHeader(StatusClientClosedRequest)
			return
		}
		defer g.Release()
		next.ServeHTTP(w, r)
	})
}
