// Package execxtest provides a scripted execx.Runner for tests.
package execxtest

import (
	"context"
	"strings"
	"sync"

	"modelboot/internal/execx"
)

// Response is what the fake returns for a matching command.
type Response struct {
	Stdout string
	Err    error
}

// Runner records every call and answers from a table keyed by
// "path arg1 arg2...". Unmatched commands succeed with empty output.
type Runner struct {
	mu        sync.Mutex
	Responses map[string]Response
	Calls     []execx.Cmd
}

func New() *Runner { return &Runner{Responses: map[string]Response{}} }

// On registers the response for a command line.
func (r *Runner) On(line string, resp Response) *Runner {
	r.mu.Lock()
	r.Responses[line] = resp
	r.mu.Unlock()
	return r
}

func (r *Runner) Output(ctx context.Context, c execx.Cmd) ([]byte, error) {
	resp := r.record(c)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(resp.Stdout), resp.Err
}

func (r *Runner) Run(ctx context.Context, c execx.Cmd) error {
	resp := r.record(c)
	if err := ctx.Err(); err != nil {
		return err
	}
	return resp.Err
}

func (r *Runner) record(c execx.Cmd) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, c)
	return r.Responses[c.String()]
}

// Count returns how many recorded calls start with prefix.
func (r *Runner) Count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.Calls {
		if strings.HasPrefix(c.String(), prefix) {
			n++
		}
	}
	return n
}
