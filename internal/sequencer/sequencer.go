// Package sequencer runs the container startup sequence:
//
//	starting_daemon -> waiting_ready -> checking_model -> (pulling_model) -> serving
//
// Each step is a hard precondition for the next. Only the readiness wait
// retries; every other failure ends the run.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"modelboot/internal/handoff"
	"modelboot/internal/models"
	"modelboot/internal/readiness"
	"modelboot/pkg/types"
)

// Daemon is the running background daemon as seen by the sequencer.
type Daemon interface {
	PID() int
	Done() <-chan struct{}
	Stop(grace time.Duration) error
}

// Options are the knobs of a run that do not come with a dependency.
type Options struct {
	RunID            string
	SkipDaemon       bool
	PollInterval     time.Duration
	ReadyTimeout     time.Duration // 0 waits forever
	FailOnDaemonExit bool
	DaemonStopGrace  time.Duration // spawn mode only
}

// Sequencer owns the dependencies of one startup run.
type Sequencer struct {
	Opts        Options
	StartDaemon func() (Daemon, error)
	Checker     readiness.Checker
	Ensurer     *models.Ensurer
	Handoff     handoff.Strategy
	Server      handoff.Command
	Log         zerolog.Logger
	Publisher   EventPublisher
	Metrics     *Metrics

	state *State
}

// State returns the run status, creating it on first use.
func (s *Sequencer) State() *State {
	if s.state == nil {
		model := ""
		if s.Ensurer != nil {
			model = s.Ensurer.Ref.String()
		}
		s.state = newState(s.Opts.RunID, model)
	}
	return s.state
}

// SetServerPID records the spawned server's PID in the run status.
func (s *Sequencer) SetServerPID(pid int) {
	s.State().update(func(st *types.StatusResponse) { st.ServerPID = pid })
}

func (s *Sequencer) publisher() EventPublisher {
	if s.Publisher == nil {
		return noopPublisher{}
	}
	return s.Publisher
}

func (s *Sequencer) enter(p types.Phase) {
	s.State().setPhase(p)
	s.Metrics.setPhase(p)
	s.Log.Info().Str("phase", string(p)).Msg("phase")
}

func (s *Sequencer) fail(err error) error {
	s.State().update(func(st *types.StatusResponse) { st.Error = err.Error() })
	s.enter(types.PhaseFailed)
	s.publisher().Publish(Event{Name: EventFailed, Phase: types.PhaseFailed, Fields: map[string]any{"error": err.Error()}})
	return err
}

// Run executes the sequence. With an exec hand-off a successful Run never
// returns. With a spawn hand-off it returns nil or a *handoff.ExitError once
// the server exits.
func (s *Sequencer) Run(ctx context.Context) error {
	if s.Checker == nil || s.Ensurer == nil || s.Handoff == nil {
		return errors.New("sequencer: checker, ensurer and handoff are required")
	}
	pub := s.publisher()

	// 1. launch daemon
	s.enter(types.PhaseStartingDaemon)
	var d Daemon
	var abort <-chan struct{}
	if !s.Opts.SkipDaemon {
		if s.StartDaemon == nil {
			return s.fail(errors.New("sequencer: no daemon launcher configured"))
		}
		var err error
		if d, err = s.StartDaemon(); err != nil {
			return s.fail(err)
		}
		s.State().update(func(st *types.StatusResponse) { st.DaemonPID = d.PID() })
		pub.Publish(Event{Name: EventDaemonStarted, Phase: types.PhaseStartingDaemon, Fields: map[string]any{"pid": d.PID()}})
		if s.Opts.FailOnDaemonExit {
			abort = d.Done()
		}
	}

	// 2. poll readiness
	s.enter(types.PhaseWaitingReady)
	start := time.Now()
	w := &readiness.Waiter{
		Checker:  s.Checker,
		Interval: s.Opts.PollInterval,
		Timeout:  s.Opts.ReadyTimeout,
		Abort:    abort,
		Log:      s.Log,
		OnAttempt: func(attempt int, err error) {
			s.Metrics.probe(err)
			s.State().update(func(st *types.StatusResponse) { st.ProbeAttempts = attempt })
		},
	}
	attempts, err := w.Wait(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("wait for daemon: %w", err))
	}
	s.Metrics.readyAfter(time.Since(start).Seconds())
	pub.Publish(Event{Name: EventReady, Phase: types.PhaseWaitingReady, Fields: map[string]any{"attempts": attempts}})

	// 3. check model, pull if absent
	s.enter(types.PhaseCheckingModel)
	prevHook := s.Ensurer.OnPull
	s.Ensurer.OnPull = func(ref models.Ref) {
		s.enter(types.PhasePullingModel)
		pub.Publish(Event{Name: EventModelPull, Phase: types.PhasePullingModel, Fields: map[string]any{"model": ref.String()}})
		if prevHook != nil {
			prevHook(ref)
		}
	}
	pulled, err := s.Ensurer.Ensure(ctx)
	s.Ensurer.OnPull = prevHook
	if pulled {
		s.Metrics.pull(err)
	}
	if err != nil {
		return s.fail(err)
	}
	s.State().update(func(st *types.StatusResponse) { st.Pulled = pulled })
	if pulled {
		pub.Publish(Event{Name: EventModelPulled, Phase: types.PhasePullingModel, Fields: map[string]any{"model": s.Ensurer.Ref.String()}})
	} else {
		pub.Publish(Event{Name: EventModelPresent, Phase: types.PhaseCheckingModel, Fields: map[string]any{"model": s.Ensurer.Ref.String()}})
	}

	// 4. hand off
	s.enter(types.PhaseServing)
	pub.Publish(Event{Name: EventHandoff, Phase: types.PhaseServing, Fields: map[string]any{"path": s.Server.Path, "args": s.Server.Args}})
	// Signals reach a spawned server through the strategy's forwarder, not
	// through ctx.
	herr := s.Handoff.Handoff(context.WithoutCancel(ctx), s.Server)

	// Only reachable after a spawn hand-off or a failed exec.
	var exit *handoff.ExitError
	if herr != nil && !errors.As(herr, &exit) {
		return s.fail(herr)
	}
	if d != nil {
		grace := s.Opts.DaemonStopGrace
		if grace <= 0 {
			grace = 5 * time.Second
		}
		if err := d.Stop(grace); err != nil {
			s.Log.Warn().Err(err).Msg("stop daemon")
		}
	}
	return herr
}
