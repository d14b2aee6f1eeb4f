package cli

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"modelboot/internal/config"
	"modelboot/internal/daemon"
	"modelboot/internal/execx"
	"modelboot/internal/handoff"
	"modelboot/internal/models"
	"modelboot/internal/readiness"
	"modelboot/internal/sequencer"
	"modelboot/internal/statusapi"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the full startup sequence (default)",
		Example: "  modelboot run\n  modelboot run --handoff spawn --status-addr :9091",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSequence(cmd.Context())
		},
	}
	addRunFlags(cmd, a)
	return cmd
}

// components are built from the resolved config and shared by subcommands.
type components struct {
	checker readiness.Checker
	ensurer *models.Ensurer
}

func (a *app) components() (*components, error) {
	cfg := a.cfg
	ref, err := models.ParseRef(cfg.Model)
	if err != nil {
		return nil, err
	}
	healthURL, err := cfg.HealthURL()
	if err != nil {
		return nil, err
	}
	runner := execx.NewOSRunner(a.log.With().Str("cmd", cfg.DaemonBin).Logger())
	return &components{
		checker: readiness.NewHTTPProbe(healthURL, cfg.ProbeTimeout.Std()),
		ensurer: &models.Ensurer{
			Runner:      runner,
			Bin:         cfg.DaemonBin,
			Env:         cfg.DaemonEnv(),
			Ref:         ref,
			AcceptColon: cfg.AcceptColonForm,
			StoreDir:    storeDir(cfg),
			Log:         a.log,
		},
	}, nil
}

// storeDir is where the pull lock lives. A sidecar daemon owns a store this
// container cannot see, so no lock is taken there.
func storeDir(cfg config.Config) string {
	if cfg.SkipDaemon {
		return ""
	}
	return cfg.ModelsDir
}

func (a *app) strategy(seq *sequencer.Sequencer) handoff.Strategy {
	if a.cfg.Handoff == config.HandoffSpawn {
		return &handoff.Spawn{Log: a.log, OnStart: seq.SetServerPID}
	}
	return &handoff.Exec{Log: a.log}
}

func (a *app) runSequence(ctx context.Context) error {
	cfg := a.cfg
	c, err := a.components()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	launcher := &daemon.Launcher{
		Bin:  cfg.DaemonBin,
		Args: cfg.DaemonArgs,
		Env:  cfg.DaemonEnv(),
		Log:  a.log.With().Str("component", "daemon").Logger(),
	}
	seq := &sequencer.Sequencer{
		Opts: sequencer.Options{
			RunID:            a.runID,
			SkipDaemon:       cfg.SkipDaemon,
			PollInterval:     cfg.PollInterval.Std(),
			ReadyTimeout:     cfg.ReadyTimeout.Std(),
			FailOnDaemonExit: cfg.FailOnDaemonExit,
		},
		StartDaemon: func() (sequencer.Daemon, error) {
			p, err := launcher.Start()
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		Checker: c.checker,
		Ensurer: c.ensurer,
		Server: handoff.Command{
			Path: cfg.ServerCmd[0],
			Args: cfg.ServerCmd[1:],
			Env:  execx.MergeEnv(os.Environ(), cfg.DaemonEnv()),
			Dir:  cfg.ServerDir,
		},
		Log:     a.log,
		Metrics: sequencer.NewMetrics(reg),
	}
	seq.Handoff = a.strategy(seq)
	state := seq.State()

	if cfg.StatusAddr != "" {
		srv, err := statusapi.Start(cfg.StatusAddr, statusapi.NewMux(state, reg, reg, a.log), a.log)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	a.log.Info().
		Str("model", c.ensurer.Ref.String()).
		Str("host", cfg.Host).
		Str("handoff", cfg.Handoff).
		Bool("skip_daemon", cfg.SkipDaemon).
		Msg("starting")
	return seq.Run(ctx)
}
