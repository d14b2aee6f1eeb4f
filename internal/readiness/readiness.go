// Package readiness implements the HTTP probe used as the rendezvous barrier
// between the sequencer and the daemon, and the loop that waits on it.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNotReady is returned when an opt-in ready timeout elapses.
	ErrNotReady = errors.New("daemon not ready")
	// ErrDaemonExited is returned when the abort channel closes first.
	ErrDaemonExited = errors.New("daemon exited before becoming ready")
)

// Checker performs one readiness probe.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// HTTPProbe issues GET URL and treats any 2xx response as ready. The body is
// drained and ignored.
type HTTPProbe struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration // per attempt; 0 relies on ctx only
}

// NewHTTPProbe returns a probe with its own client. The client carries no
// global timeout; each attempt is bounded by Timeout through its context.
func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{URL: url, Client: &http.Client{Timeout: 0}, Timeout: timeout}
}

func (p *HTTPProbe) Check(ctx context.Context) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	cli := p.Client
	if cli == nil {
		cli = http.DefaultClient
	}
	resp, err := cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: %s", p.URL, resp.Status)
	}
	return nil
}

// Waiter polls a Checker at a fixed interval until it succeeds.
//
// With Timeout and Abort unset the loop has no exit other than success or
// ctx cancellation: a daemon that never answers hangs the caller forever.
type Waiter struct {
	Checker  Checker
	Interval time.Duration
	Timeout  time.Duration   // opt-in; 0 waits forever
	Abort    <-chan struct{} // opt-in; closed when the daemon exits
	Log      zerolog.Logger
	// OnAttempt, if set, is called after every probe with its 1-based index.
	OnAttempt func(attempt int, err error)
}

// Wait blocks until the first successful probe and returns the number of
// probes issued, including the successful one.
func (w *Waiter) Wait(ctx context.Context) (int, error) {
	if w.Interval <= 0 {
		return 0, fmt.Errorf("readiness: interval must be positive, got %s", w.Interval)
	}
	var deadline <-chan time.Time
	if w.Timeout > 0 {
		t := time.NewTimer(w.Timeout)
		defer t.Stop()
		deadline = t.C
	}
	attempt := 0
	for {
		attempt++
		err := w.Checker.Check(ctx)
		if w.OnAttempt != nil {
			w.OnAttempt(attempt, err)
		}
		if err == nil {
			w.Log.Info().Int("attempt", attempt).Msg("model daemon is ready")
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		w.Log.Info().Int("attempt", attempt).Str("reason", err.Error()).Msg("waiting for model daemon")

		sleep := time.NewTimer(w.Interval)
		select {
		case <-sleep.C:
		case <-ctx.Done():
			sleep.Stop()
			return attempt, ctx.Err()
		case <-deadline:
			sleep.Stop()
			return attempt, fmt.Errorf("%w after %s (%d probes)", ErrNotReady, w.Timeout, attempt)
		case <-w.Abort:
			sleep.Stop()
			return attempt, ErrDaemonExited
		}
	}
}
