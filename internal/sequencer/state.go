package sequencer

import (
	"sync"
	"time"

	"modelboot/pkg/types"
)

// State is the mutex-guarded run status read by the status listener.
type State struct {
	mu sync.RWMutex
	s  types.StatusResponse
}

func newState(runID, model string) *State {
	return &State{s: types.StatusResponse{RunID: runID, Model: model, Phase: types.PhaseStartingDaemon, Since: time.Now()}}
}

// Snapshot returns a copy of the current status.
func (st *State) Snapshot() types.StatusResponse {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

func (st *State) update(fn func(s *types.StatusResponse)) {
	st.mu.Lock()
	fn(&st.s)
	st.mu.Unlock()
}

func (st *State) setPhase(p types.Phase) {
	st.update(func(s *types.StatusResponse) {
		if s.Phase != p {
			s.Phase = p
			s.Since = time.Now()
		}
	})
}
