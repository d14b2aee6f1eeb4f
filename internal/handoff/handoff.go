// Package handoff transfers control from the sequencer to the web server.
//
// Exec replaces the process image, so the server inherits the sequencer's
// PID and the container's init wrapper becomes its supervisor. Spawn starts
// the server as a child, forwards signals, and propagates its exit code;
// it is observably equivalent where image replacement is unwanted.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// ErrHandoff wraps failures to launch the server command.
var ErrHandoff = errors.New("hand-off failed")

// Command is the server process to hand off to.
type Command struct {
	Path string
	Args []string
	Env  []string // full environment; nil inherits os.Environ()
	Dir  string
}

func (c Command) environ() []string {
	if c.Env == nil {
		return os.Environ()
	}
	return c.Env
}

// Strategy performs the hand-off. On success Exec never returns; Spawn
// returns after the server exits.
type Strategy interface {
	Handoff(ctx context.Context, c Command) error
}

// ExitError carries the server's exit code out of Spawn.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("server exited with code %d", e.Code) }

// Exec replaces the current process image.
type Exec struct {
	Log zerolog.Logger
	// exec is unix.Exec unless a test swaps it.
	exec func(argv0 string, argv []string, envv []string) error
}

func (x *Exec) Handoff(_ context.Context, c Command) error {
	// Relative server paths resolve against Dir, the directory the server
	// runs in.
	if c.Dir != "" {
		if err := os.Chdir(c.Dir); err != nil {
			return fmt.Errorf("%w: chdir %s: %w", ErrHandoff, c.Dir, err)
		}
	}
	path, err := exec.LookPath(c.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandoff, err)
	}
	argv := append([]string{c.Path}, c.Args...)
	x.Log.Info().Str("path", path).Strs("argv", argv).Msg("handing off to server")
	fn := x.exec
	if fn == nil {
		fn = unix.Exec
	}
	if err := fn(path, argv, c.environ()); err != nil {
		return fmt.Errorf("%w: exec %s: %w", ErrHandoff, path, err)
	}
	return nil
}

// forwarded are relayed from the sequencer to the spawned server.
var forwarded = []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGHUP, unix.SIGQUIT, unix.SIGUSR1, unix.SIGUSR2}

// Spawn runs the server as a child and waits for it.
type Spawn struct {
	Log zerolog.Logger
	// OnStart, if set, receives the server PID once it is running.
	OnStart func(pid int)
}

func (s *Spawn) Handoff(ctx context.Context, c Command) error {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = c.environ()
	cmd.Dir = c.Dir
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr

	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, forwarded...)
	defer signal.Stop(sigs)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrHandoff, err)
	}
	pid := cmd.Process.Pid
	s.Log.Info().Int("pid", pid).Str("path", c.Path).Strs("args", c.Args).Msg("server started")
	if s.OnStart != nil {
		s.OnStart(pid)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()
	for {
		select {
		case sig := <-sigs:
			s.Log.Info().Str("signal", sig.String()).Int("pid", pid).Msg("forwarding signal to server")
			_ = cmd.Process.Signal(sig)
		case <-ctx.Done():
			_ = cmd.Process.Signal(unix.SIGTERM)
			ctx = context.Background()
		case err := <-waitErr:
			code := exitCode(cmd.ProcessState, err)
			s.Log.Info().Int("pid", pid).Int("code", code).Msg("server exited")
			if code == 0 {
				return nil
			}
			return &ExitError{Code: code}
		}
	}
}

// exitCode maps a wait result to a shell-style exit code: signal deaths
// become 128+signo.
func exitCode(ps *os.ProcessState, err error) int {
	if ps == nil {
		if err != nil {
			return 1
		}
		return 0
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ps.ExitCode()
}
