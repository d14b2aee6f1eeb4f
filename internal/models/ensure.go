package models

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"modelboot/internal/common/fsutil"
	"modelboot/internal/execx"
)

var (
	// ErrList wraps failures of the list command.
	ErrList = errors.New("list models failed")
	// ErrPull wraps failures of the pull command.
	ErrPull = errors.New("pull model failed")
)

// LockFileName is created in the model store to serialize check-and-pull
// across containers sharing the store.
const LockFileName = ".modelboot.lock"

const lockRetry = 250 * time.Millisecond

// Ensurer checks for a model with the daemon's list command and pulls it
// when absent.
type Ensurer struct {
	Runner      execx.Runner
	Bin         string
	Env         map[string]string
	Ref         Ref
	AcceptColon bool
	StoreDir    string // lock lives here; empty disables locking
	Log         zerolog.Logger
	// OnPull, if set, is called right before the pull command runs.
	OnPull func(Ref)
}

// List runs the list command and returns its raw output.
func (e *Ensurer) List(ctx context.Context) (string, error) {
	out, err := e.Runner.Output(ctx, execx.Cmd{Path: e.Bin, Args: []string{"list"}, Env: e.Env})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrList, err)
	}
	return string(out), nil
}

// Present reports whether the model is installed.
func (e *Ensurer) Present(ctx context.Context) (bool, error) {
	out, err := e.List(ctx)
	if err != nil {
		return false, err
	}
	return NewMatcher(e.Ref, e.AcceptColon).Match(out), nil
}

// Ensure pulls the model if it is absent and reports whether a pull ran.
// A pull failure is returned as is; the caller treats it as fatal.
func (e *Ensurer) Ensure(ctx context.Context) (bool, error) {
	unlock, err := e.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	ok, err := e.Present(ctx)
	if err != nil {
		return false, err
	}
	log := e.Log.With().Str("model", e.Ref.String()).Logger()
	if ok {
		log.Info().Msg("model already present")
		return false, nil
	}
	log.Info().Msg("model missing, pulling")
	if e.OnPull != nil {
		e.OnPull(e.Ref)
	}
	start := time.Now()
	if err := e.Runner.Run(ctx, execx.Cmd{Path: e.Bin, Args: []string{"pull", e.Ref.String()}, Env: e.Env}); err != nil {
		return true, fmt.Errorf("%w: %s: %w", ErrPull, e.Ref, err)
	}
	log.Info().Dur("took", time.Since(start)).Msg("model pulled")
	return true, nil
}

func (e *Ensurer) lock(ctx context.Context) (func(), error) {
	if e.StoreDir == "" {
		return func() {}, nil
	}
	if err := fsutil.EnsureDir(e.StoreDir); err != nil {
		// Read-only or remote store: the daemon owns it, nothing to serialize.
		e.Log.Warn().Err(err).Str("dir", e.StoreDir).Msg("model store not writable, continuing without lock")
		return func() {}, nil
	}
	path := filepath.Join(e.StoreDir, LockFileName)
	fl := flock.New(path)
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		if storeReadOnly(err) {
			e.Log.Warn().Err(err).Str("lock", path).Msg("model store not writable, continuing without lock")
			return func() {}, nil
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: not acquired", path)
	}
	e.Log.Debug().Str("lock", path).Msg("model store locked")
	return func() {
		if err := fl.Unlock(); err != nil {
			e.Log.Warn().Err(err).Str("lock", path).Msg("failed to release model store lock")
		}
	}, nil
}

// storeReadOnly reports lock file errors caused by a store this process
// cannot write to.
func storeReadOnly(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS)
}
