package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dirshare/internal/logging"
)

func TestNewRejectsBadLimit(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("New(0) succeeded")
	}
}

func TestMiddlewareCapsConcurrency(t *testing.T) {
	logging.InitNop()
	const limit = 3
	g, err := New(limit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var cur, peak atomic.Int64
	release := make(chan struct{})
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := cur.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		cur.Add(-1)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for cur.Load() < limit && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if got := cur.Load(); got != limit {
		t.Errorf("in flight = %d, want %d", got, limit)
	}

	close(release)
	wg.Wait()
	if got := peak.Load(); got > limit {
		t.Errorf("peak concurrency = %d, exceeds %d", got, limit)
	}
}

func TestAcquireHonoursCancellation(t *testing.T) {
	g, _ := New(1)
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Acquire(ctx); err == nil {
		t.Fatal("second Acquire should fail once ctx expires")
	}

	g.Release()
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	g.Release()
}

func TestMiddlewareSkipsHandlerForGoneClient(t *testing.T) {
	logging.InitNop()
	g, _ := New(1)
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer g.Release()

	called := false
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	if called {
		t.Error("handler ran for a cancelled, queued request")
	}
	if rec.Code != StatusClientClosedRequest {
		t.Errorf("recorded status = %d, want %d", rec.Code, StatusClientClosedRequest)
	}
}

func TestWaitersAdmittedInOrder(t *testing.T) {
	g, _ := New(1)
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := g.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			g.Release()
		}(i)
		// Let each waiter enqueue before the next one arrives.
		time.Sleep(10 * time.Millisecond)
	}
	g.Release()
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("admission order = %v, want FIFO", order)
		}
	}
}
