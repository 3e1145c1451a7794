package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ning0612/NuUpdater/internal/domain"
	"github.com/Ning0612/NuUpdater/internal/output"
	"github.com/Ning0612/NuUpdater/internal/service"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		createOutput  bool
		metricsAddr   string
		noWatch       bool
		showCountdown bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the auto-update schedule in the foreground",
		Long: `Start the automatic schedule and keep updating the output file until
interrupted. The first cycle starts on the next tick.

While running, the daemon reloads the settings file when it changes and
answers "nuupdater fetch" from other processes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if running, _ := a.pidFile().IsRunning(); running {
				return fmt.Errorf("%w: see %s", domain.ErrAlreadyRunning, a.pidFile().Path())
			}
			if metricsAddr != "" {
				a.cfg.Metrics.Addr = metricsAddr
			}

			ep := output.NewEventPrinter(a.printer)
			ep.ShowCountdown = showCountdown

			svc, err := service.NewDaemonService(a.cfg, service.DaemonOptions{
				CreateOutput: createOutput,
				Reporter:     ep,
				Watch:        !noWatch,
				WritePID:     true,
			})
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			status := svc.Status()
			a.printer.Info("Updating %s every %s (%d of %d satellites selected)",
				status.OutputPath, status.Scheduler.Interval, len(status.Selection), len(status.Catalog))

			if err := svc.Run(ctx); err != nil {
				return err
			}
			a.printer.Print("Shut down.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&createOutput, "create-output", false, "create the output file if it does not exist")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the settings file when it changes")
	cmd.Flags().BoolVar(&showCountdown, "countdown", false, "print the countdown once a minute")
	return cmd
}
