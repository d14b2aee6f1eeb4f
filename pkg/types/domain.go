package types

// Phase is a step of the startup sequence.
type Phase string

const (
	PhaseStartingDaemon Phase = "starting_daemon"
	PhaseWaitingReady   Phase = "waiting_ready"
	PhaseCheckingModel  Phase = "checking_model"
	PhasePullingModel   Phase = "pulling_model"
	PhaseServing        Phase = "serving"
	PhaseFailed         Phase = "failed"
)

// Terminal reports whether no further transitions happen from p.
func (p Phase) Terminal() bool { return p == PhaseServing || p == PhaseFailed }

// ModelEntry is one parsed row of the daemon's model list output.
type ModelEntry struct {
	// Model name without tag.
	// example: deepseek-coder
	Name string `json:"name" example:"deepseek-coder"`
	// Tag, empty when the row carried none.
	// example: latest
	Tag string `json:"tag,omitempty" example:"latest"`
	// Remaining columns (id, size, modified) as printed.
	Rest []string `json:"rest,omitempty"`
	// Raw line as printed by the daemon CLI.
	Raw string `json:"raw"`
}
