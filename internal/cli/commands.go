package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"modelboot/internal/models"
	"modelboot/internal/readiness"
)

func newProbeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "probe",
		Short:   "Issue one readiness probe against the daemon (exit 0 when ready)",
		Example: "  HEALTHCHECK CMD [\"modelboot\", \"probe\"]",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.components()
			if err != nil {
				return err
			}
			if err := c.checker.Check(cmd.Context()); err != nil {
				return fmt.Errorf("daemon not ready: %w", err)
			}
			_, err = fmt.Fprintln(a.stdout, "ready")
			return err
		},
	}
}

func newEnsureCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Wait for a running daemon, then pull the model if it is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.ensure(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&a.readyTimeout, "ready-timeout", 0, "Give up waiting for the daemon after this long (0 waits forever)")
	return cmd
}

func (a *app) ensure(ctx context.Context) error {
	c, err := a.components()
	if err != nil {
		return err
	}
	w := &readiness.Waiter{
		Checker:  c.checker,
		Interval: a.cfg.PollInterval.Std(),
		Timeout:  a.cfg.ReadyTimeout.Std(),
		Log:      a.log,
	}
	if _, err := w.Wait(ctx); err != nil {
		return fmt.Errorf("wait for daemon: %w", err)
	}
	pulled, err := c.ensurer.Ensure(ctx)
	if err != nil {
		return err
	}
	state := "present"
	if pulled {
		state = "pulled"
	}
	_, err = fmt.Fprintf(a.stdout, "%s %s\n", c.ensurer.Ref, state)
	return err
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List installed models as reported by the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.components()
			if err != nil {
				return err
			}
			out, err := c.ensurer.List(cmd.Context())
			if err != nil {
				return err
			}
			match := models.NewMatcher(c.ensurer.Ref, a.cfg.AcceptColonForm)
			rows := [][]string{}
			for _, e := range models.ParseList(out) {
				mark := ""
				if match.Match(e.Raw) {
					mark = "*"
				}
				rows = append(rows, []string{mark, e.Name, e.Tag, strings.Join(e.Rest, " ")})
			}
			_, err = fmt.Fprintln(a.stdout, renderTable([]string{"", "NAME", "TAG", "DETAILS"}, rows))
			return err
		},
	}
}
