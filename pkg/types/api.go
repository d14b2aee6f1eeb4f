package types

import "time"

// StatusResponse is returned by GET /status on the status listener.
type StatusResponse struct {
	RunID         string    `json:"run_id"`
	Phase         Phase     `json:"phase"`
	Model         string    `json:"model"`
	ProbeAttempts int       `json:"probe_attempts"`
	Pulled        bool      `json:"pulled"`
	DaemonPID     int       `json:"daemon_pid,omitempty"`
	ServerPID     int       `json:"server_pid,omitempty"`
	Since         time.Time `json:"since"`
	Error         string    `json:"error,omitempty"`
}

// ErrorResponse is the JSON error body used by the status listener.
type ErrorResponse struct {
	Error string `json:"error"`
}
