package readiness

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHTTPProbe(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r); return
		}
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer ts.Close()

	p := NewHTTPProbe(ts.URL+"/api/tags", time.Second)
	if err := p.Check(context.Background()); err == nil {
		t.Fatalf("503 should not be ready")
	}
	status.Store(http.StatusOK)
	if err := p.Check(context.Background()); err != nil {
		t.Fatalf("200 should be ready: %v", err)
	}
}

func TestHTTPProbeConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	if err := NewHTTPProbe(url, 500*time.Millisecond).Check(context.Background()); err == nil {
		t.Fatalf("expected error against closed server")
	}
}

// failN fails the first n probes, then succeeds.
func failN(n int, calls *int) Checker {
	return CheckerFunc(func(context.Context) error {
		*calls++
		if *calls <= n {
			return errors.New("connection refused")
		}
		return nil
	})
}

func TestWaitCountsAttempts(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		calls := 0
		w := &Waiter{Checker: failN(n, &calls), Interval: time.Millisecond, Log: zerolog.Nop()}
		got, err := w.Wait(context.Background())
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if got != n+1 || calls != n+1 {
			t.Fatalf("n=%d: attempts=%d calls=%d want %d", n, got, calls, n+1)
		}
	}
}

func TestWaitOnAttemptHook(t *testing.T) {
	calls := 0
	var seen []int
	w := &Waiter{Checker: failN(2, &calls), Interval: time.Millisecond, Log: zerolog.Nop(),
		OnAttempt: func(a int, err error) { seen = append(seen, a) }}
	if _, err := w.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 || seen[2] != 3 {
		t.Fatalf("seen=%v", seen)
	}
}

func TestWaitNeverReadyMakesNoProgress(t *testing.T) {
	never := CheckerFunc(func(context.Context) error { return errors.New("refused") })
	w := &Waiter{Checker: never, Interval: 5 * time.Millisecond, Log: zerolog.Nop()}
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _, _ = w.Wait(ctx); close(done) }()
	select {
	case <-done:
		t.Fatalf("Wait returned without a successful probe")
	case <-time.After(200 * time.Millisecond):
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Wait ignored cancellation")
	}
}

func TestWaitOptInTimeout(t *testing.T) {
	never := CheckerFunc(func(context.Context) error { return errors.New("refused") })
	w := &Waiter{Checker: never, Interval: 5 * time.Millisecond, Timeout: 50 * time.Millisecond, Log: zerolog.Nop()}
	_, err := w.Wait(context.Background())
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestWaitAbort(t *testing.T) {
	never := CheckerFunc(func(context.Context) error { return errors.New("refused") })
	abort := make(chan struct{})
	close(abort)
	w := &Waiter{Checker: never, Interval: time.Hour, Abort: abort, Log: zerolog.Nop()}
	_, err := w.Wait(context.Background())
	if !errors.Is(err, ErrDaemonExited) {
		t.Fatalf("expected ErrDaemonExited, got %v", err)
	}
}

func TestWaitRejectsZeroInterval(t *testing.T) {
	w := &Waiter{Checker: CheckerFunc(func(context.Context) error { return nil })}
	if _, err := w.Wait(context.Background()); err == nil {
		t.Fatalf("expected interval error")
	}
}
