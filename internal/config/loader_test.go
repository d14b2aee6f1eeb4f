package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "host: ollama:11434\nmodels_dir: /data\npoll_interval: 250ms\nmodel: llama3:8b\nserver_cmd: [python, app.py]\nhandoff: spawn\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Host != "ollama:11434" || cfg.ModelsDir != "/data" || cfg.PollInterval.Std() != 250*time.Millisecond || cfg.Model != "llama3:8b" || cfg.Handoff != "spawn" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.ServerCmd) != 2 || cfg.ServerCmd[1] != "app.py" {
		t.Fatalf("server_cmd=%v", cfg.ServerCmd)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"host":"http://10.0.0.2:11434","ready_timeout":"2m","skip_daemon":true,"accept_colon_form":true}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Host != "http://10.0.0.2:11434" || cfg.ReadyTimeout.Std() != 2*time.Minute || !cfg.SkipDaemon || !cfg.AcceptColonForm {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSONNumericDurations(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"poll_interval":500,"ready_timeout":"2s","probe_timeout":null}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval.Std() != 500*time.Millisecond || cfg.ReadyTimeout.Std() != 2*time.Second || cfg.ProbeTimeout != 0 {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	p = writeTempFile(t, d, "bad.json", `{"poll_interval":true}`)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for a boolean duration")
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "daemon_bin=\"/usr/bin/ollama\"\nprobe_timeout=\"1s\"\nstatus_addr=\":9091\"\nlog_level=\"debug\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DaemonBin != "/usr/bin/ollama" || cfg.ProbeTimeout.Std() != time.Second || cfg.StatusAddr != ":9091" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	bad := writeTempFile(t, d, "bad.yaml", "poll_interval: soon\n")
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestResolveLayering(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "model: from-file:1\nmodels_dir: /file\n")
	t.Setenv(EnvModel, "from-env:2")
	t.Setenv(EnvOllamaHost, "")
	cfg, err := Resolve(p)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Model != "from-env:2" {
		t.Fatalf("env should win over file, got %q", cfg.Model)
	}
	if cfg.ModelsDir != "/file" {
		t.Fatalf("file should win over defaults, got %q", cfg.ModelsDir)
	}
	if cfg.DaemonBin != "ollama" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadEnvFile(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, ".env", "MODELBOOT_TEST_ENVFILE=hello\n")
	t.Cleanup(func() { os.Unsetenv("MODELBOOT_TEST_ENVFILE") })
	if err := LoadEnvFile(p); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("MODELBOOT_TEST_ENVFILE"); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if err := LoadEnvFile(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
	if err := LoadEnvFile(filepath.Join(d, "missing.env")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestResolveExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvOllamaModels, "~/.ollama/models")
	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := filepath.Join(home, ".ollama", "models"); cfg.ModelsDir != want {
		t.Fatalf("models dir = %q, want %q", cfg.ModelsDir, want)
	}
}
