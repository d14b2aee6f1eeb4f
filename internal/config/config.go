package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"modelboot/internal/logging"
)

// Handoff strategies.
const (
	HandoffExec  = "exec"
	HandoffSpawn = "spawn"
)

const defaultDaemonPort = "11434"

// Config holds runtime parameters for the startup sequence.
// Zero values mean "unspecified" and are replaced by Defaults() via Merge.
type Config struct {
	// Daemon
	DaemonBin  string   `json:"daemon_bin" yaml:"daemon_bin" toml:"daemon_bin"`
	DaemonArgs []string `json:"daemon_args" yaml:"daemon_args" toml:"daemon_args"`
	SkipDaemon bool     `json:"skip_daemon" yaml:"skip_daemon" toml:"skip_daemon"`
	Host       string   `json:"host" yaml:"host" toml:"host"`
	HealthPath string   `json:"health_path" yaml:"health_path" toml:"health_path"`
	ModelsDir  string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	// Readiness
	PollInterval     Duration `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
	ProbeTimeout     Duration `json:"probe_timeout" yaml:"probe_timeout" toml:"probe_timeout"`
	ReadyTimeout     Duration `json:"ready_timeout" yaml:"ready_timeout" toml:"ready_timeout"`
	FailOnDaemonExit bool     `json:"fail_on_daemon_exit" yaml:"fail_on_daemon_exit" toml:"fail_on_daemon_exit"`

	// Model
	Model           string `json:"model" yaml:"model" toml:"model"`
	AcceptColonForm bool   `json:"accept_colon_form" yaml:"accept_colon_form" toml:"accept_colon_form"`

	// Hand-off
	ServerCmd []string `json:"server_cmd" yaml:"server_cmd" toml:"server_cmd"`
	ServerDir string   `json:"server_dir" yaml:"server_dir" toml:"server_dir"`
	Handoff   string   `json:"handoff" yaml:"handoff" toml:"handoff"`

	// Ambient
	StatusAddr string `json:"status_addr" yaml:"status_addr" toml:"status_addr"`
	LogLevel   string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat  string `json:"log_format" yaml:"log_format" toml:"log_format"`
}

// Defaults returns the configuration baked into the container image.
func Defaults() Config {
	return Config{
		DaemonBin:    "ollama",
		DaemonArgs:   []string{"serve"},
		Host:         "http://127.0.0.1:11434",
		HealthPath:   "/api/tags",
		ModelsDir:    "/root/.ollama/models",
		PollInterval: Duration(500 * time.Millisecond),
		ProbeTimeout: Duration(2 * time.Second),
		Model:        "deepseek-coder:latest",
		ServerCmd:    []string{"flask", "--app", "app", "run", "--host", "0.0.0.0", "--port", "5000"},
		Handoff:      HandoffExec,
		LogLevel:     "info",
		LogFormat:    "auto",
	}
}

// Merge overlays the non-zero fields of o onto c and returns the result.
func (c Config) Merge(o Config) Config {
	if o.DaemonBin != "" {
		c.DaemonBin = o.DaemonBin
	}
	if len(o.DaemonArgs) > 0 {
		c.DaemonArgs = append([]string(nil), o.DaemonArgs...)
	}
	if o.SkipDaemon {
		c.SkipDaemon = true
	}
	if o.Host != "" {
		c.Host = o.Host
	}
	if o.HealthPath != "" {
		c.HealthPath = o.HealthPath
	}
	if o.ModelsDir != "" {
		c.ModelsDir = o.ModelsDir
	}
	if o.PollInterval != 0 {
		c.PollInterval = o.PollInterval
	}
	if o.ProbeTimeout != 0 {
		c.ProbeTimeout = o.ProbeTimeout
	}
	if o.ReadyTimeout != 0 {
		c.ReadyTimeout = o.ReadyTimeout
	}
	if o.FailOnDaemonExit {
		c.FailOnDaemonExit = true
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.AcceptColonForm {
		c.AcceptColonForm = true
	}
	if len(o.ServerCmd) > 0 {
		c.ServerCmd = append([]string(nil), o.ServerCmd...)
	}
	if o.ServerDir != "" {
		c.ServerDir = o.ServerDir
	}
	if o.Handoff != "" {
		c.Handoff = o.Handoff
	}
	if o.StatusAddr != "" {
		c.StatusAddr = o.StatusAddr
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		c.LogFormat = o.LogFormat
	}
	return c
}

// Validate reports all configuration problems found, joined.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DaemonBin) == "" {
		errs = append(errs, errors.New("daemon_bin is empty"))
	}
	if len(c.ServerCmd) == 0 || strings.TrimSpace(c.ServerCmd[0]) == "" {
		errs = append(errs, errors.New("server_cmd is empty"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.ProbeTimeout < 0 || c.ReadyTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model is empty"))
	}
	switch c.Handoff {
	case HandoffExec, HandoffSpawn:
	default:
		errs = append(errs, fmt.Errorf("unknown handoff strategy %q (want exec|spawn)", c.Handoff))
	}
	if err := logging.CheckLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := logging.CheckFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.BaseURL(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BaseURL normalizes Host the way the daemon's own CLI reads OLLAMA_HOST:
// scheme defaults to http, port to 11434, and a wildcard bind address is
// reached through loopback.
func (c Config) BaseURL() (string, error) {
	raw := strings.TrimSpace(c.Host)
	if raw == "" {
		return "", errors.New("host is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse host %q: %w", c.Host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("host %q: unsupported scheme %q", c.Host, u.Scheme)
	}
	h, p := u.Hostname(), u.Port()
	if h == "" || h == "0.0.0.0" || h == "::" {
		h = "127.0.0.1"
	}
	if p == "" {
		p = defaultDaemonPort
	}
	return u.Scheme + "://" + net.JoinHostPort(h, p), nil
}

// HealthURL is the readiness probe target.
func (c Config) HealthURL() (string, error) {
	base, err := c.BaseURL()
	if err != nil {
		return "", err
	}
	path := c.HealthPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path, nil
}

// DaemonEnv is the environment handed to the daemon and its CLI so that list
// and pull address the same server and model store the sequencer probes.
func (c Config) DaemonEnv() map[string]string {
	env := map[string]string{"OLLAMA_HOST": c.Host}
	if c.ModelsDir != "" {
		env["OLLAMA_MODELS"] = c.ModelsDir
	}
	return env
}
