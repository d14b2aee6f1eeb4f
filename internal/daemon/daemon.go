// Package daemon launches the background model-serving process.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"modelboot/internal/execx"
)

// ErrStart is wrapped by every launch failure.
var ErrStart = errors.New("daemon start failed")

// Launcher starts the daemon as a detached background job.
type Launcher struct {
	Bin    string
	Args   []string
	Env    map[string]string
	Stdout io.Writer
	Stderr io.Writer
	Log    zerolog.Logger
}

// Process is the handle to a running daemon. It is released implicitly when
// the sequencer hands off by image replacement.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	mu   sync.Mutex
	err  error
}

// Start launches the daemon and returns without waiting for readiness.
// The process is not bound to any context: it must outlive the sequencer.
func (l *Launcher) Start() (*Process, error) {
	cmd := execx.Detached(execx.Cmd{Path: l.Bin, Args: l.Args, Env: l.Env})
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStart, l.Bin, err)
	}
	p := &Process{cmd: cmd, done: make(chan struct{})}
	l.Log.Info().Int("pid", cmd.Process.Pid).Str("bin", l.Bin).Strs("args", l.Args).Msg("daemon started")

	// Exit watcher; reaps the child so it never lingers as a zombie while the
	// sequencer is alive.
	go func() {
		werr := cmd.Wait()
		p.mu.Lock()
		p.err = werr
		p.mu.Unlock()
		close(p.done)
		ev := l.Log.Warn().Int("pid", cmd.Process.Pid)
		if werr != nil {
			ev = ev.Err(werr)
		}
		ev.Msg("daemon exited")
	}()
	return p, nil
}

// PID of the daemon process.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Done is closed when the daemon exits.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err returns the wait error once Done is closed; nil before that or on a
// clean exit.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Exited reports whether the daemon has already exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Stop sends SIGTERM and falls back to SIGKILL after grace.
func (p *Process) Stop(grace time.Duration) error {
	if p.Exited() {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	select {
	case <-p.done:
	case <-time.After(grace):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	return nil
}
