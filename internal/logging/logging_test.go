package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"err":     zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestCheckLevelAndFormat(t *testing.T) {
	for _, ok := range []string{"", "debug", "WARN", "off"} {
		if err := CheckLevel(ok); err != nil {
			t.Fatalf("CheckLevel(%q): %v", ok, err)
		}
	}
	if err := CheckLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	for _, ok := range []string{"", "auto", "json", "Console"} {
		if err := CheckFormat(ok); err != nil {
			t.Fatalf("CheckFormat(%q): %v", ok, err)
		}
	}
	if err := CheckFormat("logfmt"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestNewJSONForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", FormatAuto, &buf)
	l.Info().Str("phase", "waiting_ready").Msg("hello")
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if m["phase"] != "waiting_ready" || m["message"] != "hello" {
		t.Fatalf("unexpected fields: %v", m)
	}
}

func TestNewConsoleAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", FormatConsole, &buf)
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("console format should not be json: %q", out)
	}
}
