// Package execx runs external commands for the sequencer. Components depend
// on the Runner interface so tests can script command output.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Cmd describes one external command invocation.
type Cmd struct {
	Path string
	Args []string
	Env  map[string]string // additional env vars
	Dir  string            // working directory
}

func (c Cmd) String() string { return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " ")) }

// Runner executes commands to completion.
type Runner interface {
	// Output runs c and returns its stdout.
	Output(ctx context.Context, c Cmd) ([]byte, error)
	// Run runs c, streaming its output line by line to the runner's sink.
	Run(ctx context.Context, c Cmd) error
}

// OSRunner runs commands as child processes of the current process.
type OSRunner struct {
	Log zerolog.Logger
}

// NewOSRunner returns a Runner that logs streamed output at info level.
func NewOSRunner(log zerolog.Logger) *OSRunner { return &OSRunner{Log: log} }

const stderrTail = 4096

func (r *OSRunner) Output(ctx context.Context, c Cmd) ([]byte, error) {
	cmd := Command(ctx, c)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return out, fmt.Errorf("%s: %w", c.String(), ctx.Err())
		}
		return out, wrapExit(c, err, stderr.String())
	}
	return out, nil
}

func (r *OSRunner) Run(ctx context.Context, c Cmd) error {
	cmd := Command(ctx, c)
	tail := &tailBuffer{max: stderrTail}
	stdout := &lineWriter{log: r.Log, stream: "stdout"}
	stderr := &lineWriter{log: r.Log, stream: "stderr", keep: tail}
	cmd.Stdout, cmd.Stderr = stdout, stderr
	err := cmd.Run()
	stdout.Flush()
	stderr.Flush()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", c.String(), ctx.Err())
	}
	return wrapExit(c, err, tail.String())
}

// maxLine bounds a buffered partial line; longer output is logged in chunks.
const maxLine = 64 * 1024

// lineWriter logs each complete line written to it. It never blocks the
// child: whatever arrives is consumed.
type lineWriter struct {
	log    zerolog.Logger
	stream string
	keep   io.Writer
	buf    []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	for len(w.buf) > maxLine {
		w.emit(w.buf[:maxLine])
		w.buf = w.buf[maxLine:]
	}
	if len(w.buf) == 0 {
		w.buf = nil
	}
	return len(p), nil
}

// Flush logs a trailing line without a newline.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(b []byte) {
	line := strings.TrimRight(string(b), "\r")
	if w.keep != nil {
		_, _ = io.WriteString(w.keep, line+"\n")
	}
	if strings.TrimSpace(line) == "" {
		return
	}
	w.log.Info().Str("stream", w.stream).Msg(line)
}

// waitDelay bounds how long Wait keeps reading output after the process was
// killed, for grandchildren that still hold the pipes.
const waitDelay = 2 * time.Second

// Command builds an exec.Cmd bound to ctx, inheriting the process
// environment plus c.Env. The command runs in its own process group, and
// cancelling ctx kills the whole group.
func Command(ctx context.Context, c Cmd) *exec.Cmd {
	cmd := prepare(exec.CommandContext(ctx, c.Path, c.Args...), c)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = waitDelay
	return cmd
}

// Detached is Command without a context, for processes that must outlive
// the caller.
func Detached(c Cmd) *exec.Cmd {
	return prepare(exec.Command(c.Path, c.Args...), c)
}

func prepare(cmd *exec.Cmd, c Cmd) *exec.Cmd {
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	cmd.Env = MergeEnv(os.Environ(), c.Env)
	return cmd
}

// MergeEnv appends extra to base in a stable order. Later entries win when
// the child reads its environment.
func MergeEnv(base []string, extra map[string]string) []string {
	out := append([]string(nil), base...)
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, extra[k]))
	}
	return out
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Cmd    string
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Cmd, e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

func wrapExit(c Cmd, err error, stderr string) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if len(stderr) > stderrTail {
			stderr = stderr[len(stderr)-stderrTail:]
		}
		return &ExitError{Cmd: c.String(), Code: ee.ExitCode(), Stderr: stderr, Err: err}
	}
	return fmt.Errorf("%s: %w", c.String(), err)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
