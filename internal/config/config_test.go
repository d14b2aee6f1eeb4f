package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	c := Defaults()
	c.ServerCmd = nil
	c.PollInterval = 0
	c.Handoff = "fork"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"server_cmd", "poll_interval", "fork"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in %v", want, err)
		}
	}
}

func TestValidateRejectsUnknownLogSettings(t *testing.T) {
	c := Defaults()
	c.LogLevel = "verbose"
	c.LogFormat = "logfmt"
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "verbose") || !strings.Contains(err.Error(), "logfmt") {
		t.Fatalf("err=%v", err)
	}
}

func TestBaseURL(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"http://127.0.0.1:11434", "http://127.0.0.1:11434"},
		{"127.0.0.1", "http://127.0.0.1:11434"},
		{"0.0.0.0:11434", "http://127.0.0.1:11434"},
		{"ollama:8080", "http://ollama:8080"},
		{"https://models.internal", "https://models.internal:11434"},
	}
	for _, tc := range cases {
		c := Config{Host: tc.host}
		got, err := c.BaseURL()
		if err != nil {
			t.Fatalf("%s: %v", tc.host, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.host, got, tc.want)
		}
	}
	if _, err := (Config{Host: "ftp://x"}).BaseURL(); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := (Config{}).BaseURL(); err == nil {
		t.Fatalf("expected empty host error")
	}
}

func TestHealthURLDefault(t *testing.T) {
	u, err := Defaults().HealthURL()
	if err != nil {
		t.Fatal(err)
	}
	if u != "http://127.0.0.1:11434/api/tags" {
		t.Fatalf("health url=%s", u)
	}
}

func TestMergeKeepsUnset(t *testing.T) {
	c := Defaults().Merge(Config{PollInterval: Duration(time.Second)})
	if c.PollInterval.Std() != time.Second {
		t.Fatalf("poll=%s", c.PollInterval)
	}
	if c.Model != "deepseek-coder:latest" || c.Handoff != HandoffExec {
		t.Fatalf("merge clobbered defaults: %+v", c)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvOllamaHost, "ollama:11434")
	t.Setenv(EnvPollInterval, "750")
	t.Setenv(EnvSkipDaemon, "yes")
	t.Setenv(EnvHandoff, "SPAWN")
	c, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if c.Host != "ollama:11434" || c.PollInterval.Std() != 750*time.Millisecond || !c.SkipDaemon || c.Handoff != HandoffSpawn {
		t.Fatalf("unexpected env cfg: %+v", c)
	}
	t.Setenv(EnvReadyTimeout, "later")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected bad duration error")
	}
}

func TestDaemonEnv(t *testing.T) {
	env := Defaults().DaemonEnv()
	if env["OLLAMA_HOST"] != "http://127.0.0.1:11434" || env["OLLAMA_MODELS"] != "/root/.ollama/models" {
		t.Fatalf("env=%v", env)
	}
}
