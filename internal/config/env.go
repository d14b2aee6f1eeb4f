package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables read by FromEnv. OLLAMA_* are shared with the daemon.
const (
	EnvOllamaHost       = "OLLAMA_HOST"
	EnvOllamaModels     = "OLLAMA_MODELS"
	EnvModel            = "MODELBOOT_MODEL"
	EnvPollInterval     = "MODELBOOT_POLL_INTERVAL"
	EnvReadyTimeout     = "MODELBOOT_READY_TIMEOUT"
	EnvFailOnDaemonExit = "MODELBOOT_FAIL_ON_DAEMON_EXIT"
	EnvSkipDaemon       = "MODELBOOT_SKIP_DAEMON"
	EnvHandoff          = "MODELBOOT_HANDOFF"
	EnvServerDir        = "MODELBOOT_SERVER_DIR"
	EnvStatusAddr       = "MODELBOOT_STATUS_ADDR"
	EnvLogLevel         = "MODELBOOT_LOG_LEVEL"
	EnvLogFormat        = "MODELBOOT_LOG_FORMAT"
)

// FromEnv returns the configuration fragment set through the environment.
func FromEnv() (Config, error) {
	var c Config
	c.Host = envStr(EnvOllamaHost, "")
	c.ModelsDir = envStr(EnvOllamaModels, "")
	c.Model = envStr(EnvModel, "")
	c.Handoff = strings.ToLower(envStr(EnvHandoff, ""))
	c.ServerDir = envStr(EnvServerDir, "")
	c.StatusAddr = envStr(EnvStatusAddr, "")
	c.LogLevel = envStr(EnvLogLevel, "")
	c.LogFormat = envStr(EnvLogFormat, "")
	c.SkipDaemon = envBool(EnvSkipDaemon, false)
	c.FailOnDaemonExit = envBool(EnvFailOnDaemonExit, false)
	var err error
	if c.PollInterval, err = envDuration(EnvPollInterval); err != nil {
		return c, err
	}
	if c.ReadyTimeout, err = envDuration(EnvReadyTimeout); err != nil {
		return c, err
	}
	return c, nil
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	s := strings.ToLower(v)
	return s == "1" || s == "true" || s == "yes"
}

func envDuration(key string) (Duration, error) {
	d, err := parseDuration(envStr(key, ""))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
