package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	globalLogger = zap.New(core)
	defer InitNop()

	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("abc"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/a.txt", nil))

	if seen == "" {
		t.Fatal("request ID missing from context")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("response header %q != context id %q", rec.Header().Get("X-Request-ID"), seen)
	}

	done := logs.FilterMessage("request completed").All()
	if len(done) != 1 {
		t.Fatalf("got %d completion entries, want 1", len(done))
	}
	fields := done[0].ContextMap()
	if fields["status"] != int64(http.StatusPartialContent) {
		t.Errorf("status field = %v", fields["status"])
	}
	if fields["size"] != int64(3) {
		t.Errorf("size field = %v", fields["size"])
	}
	if fields["request_id"] != seen {
		t.Errorf("request_id field = %v", fields["request_id"])
	}
}

func TestMiddlewareKeepsClientRequestID(t *testing.T) {
	InitNop()
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := generateRequestID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestWithContextFallsBack(t *testing.T) {
	InitNop()
	if WithContext(context.Background()) != L() {
		t.Error("expected global logger for bare context")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	if got := ClientIP(r); got != "192.0.2.1" {
		t.Errorf("ClientIP = %q", got)
	}
	r.RemoteAddr = "pipe"
	if got := ClientIP(r); got != "pipe" {
		t.Errorf("ClientIP = %q", got)
	}
}

func TestPackageLevelHelpers(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	globalLogger = zap.New(core)
	defer InitNop()

	Info("listening", String("addr", "127.0.0.1:3000"), Int("max_in_flight", 64), Bool("webdav", true))
	Warn("shutdown incomplete", Int64("open", 2))
	Error("listen failed", Err(context.DeadlineExceeded))

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	wantLevels := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, wantLevels[i])
		}
	}
	info := entries[0].ContextMap()
	if info["addr"] != "127.0.0.1:3000" || info["max_in_flight"] != int64(64) || info["webdav"] != true {
		t.Errorf("info fields = %v", info)
	}
	if got := entries[1].ContextMap()["open"]; got != int64(2) {
		t.Errorf("open = %v", got)
	}
	if got := entries[2].ContextMap()["error"]; got != context.DeadlineExceeded.Error() {
		t.Errorf("error = %v", got)
	}
}
