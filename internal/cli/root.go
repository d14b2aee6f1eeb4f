// Package cli wires configuration, logging and the sequencer components into
// the modelboot command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelboot/internal/config"
	"modelboot/internal/handoff"
	"modelboot/internal/logging"
)

// Version is set at build time with -ldflags "-X modelboot/internal/cli.Version=...".
var Version = "dev"

// app carries global flag values and the resolved runtime state shared by
// subcommands.
type app struct {
	cfgPath   string
	envFile   string
	logLevel  string
	logFormat string

	// per-run overrides
	model        string
	handoff      string
	statusAddr   string
	skipDaemon   bool
	readyTimeout time.Duration

	stdout io.Writer
	stderr io.Writer

	runID string
	cfg   config.Config
	log   zerolog.Logger
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := buildRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	return a.exitCode(err)
}

func (a *app) exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *handoff.ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	if a.runID != "" {
		a.log.Error().Err(err).Msg("startup failed")
	} else {
		fmt.Fprintln(a.stderr, "modelboot:", err)
	}
	return 1
}

func buildRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "modelboot",
		Short:         "Start the model daemon, ensure the model, then hand off to the web server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSequence(cmd.Context())
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", os.Getenv("MODELBOOT_CONFIG"), "Config file (.yaml|.yml|.json|.toml); defaults MODELBOOT_CONFIG")
	pf.StringVar(&a.envFile, "env-file", "", "Optional dotenv file loaded before reading the environment")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults MODELBOOT_LOG_LEVEL or info)")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format: auto|json|console")
	pf.StringVar(&a.model, "model", "", "Model reference name[:tag] (defaults MODELBOOT_MODEL or deepseek-coder:latest)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return a.load(cmd)
	}
	addRunFlags(root, a)

	root.AddCommand(newRunCmd(a), newProbeCmd(a), newEnsureCmd(a), newModelsCmd(a), newVersionCmd(a))
	return root
}

func addRunFlags(cmd *cobra.Command, a *app) {
	f := cmd.Flags()
	f.StringVar(&a.handoff, "handoff", "", "Hand-off strategy: exec|spawn")
	f.StringVar(&a.statusAddr, "status-addr", "", "Listen address for /healthz, /status and /metrics (empty disables)")
	f.BoolVar(&a.skipDaemon, "skip-daemon", false, "Do not start the daemon; use the one at OLLAMA_HOST")
	f.DurationVar(&a.readyTimeout, "ready-timeout", 0, "Give up waiting for the daemon after this long (0 waits forever)")
}

// load resolves configuration in precedence order defaults < file < env file
// and environment < flags, then builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Resolve(a.cfgPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	// Flags are assigned, not merged, so an explicit false, 0 or "" still
	// overrides the file and the environment.
	if changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if changed("model") {
		cfg.Model = a.model
	}
	if changed("handoff") {
		cfg.Handoff = a.handoff
	}
	if changed("status-addr") {
		cfg.StatusAddr = a.statusAddr
	}
	if changed("skip-daemon") {
		cfg.SkipDaemon = a.skipDaemon
	}
	if changed("ready-timeout") {
		cfg.ReadyTimeout = config.Duration(a.readyTimeout)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	a.runID = uuid.NewString()
	a.log = logging.New(cfg.LogLevel, cfg.LogFormat, a.stderr).With().Str("run_id", a.runID).Logger()
	return nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the modelboot version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(a.stdout, "modelboot", Version)
			return err
		},
	}
}
