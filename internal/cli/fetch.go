package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Ning0612/NuUpdater/internal/daemon"
	"github.com/Ning0612/NuUpdater/internal/domain"
	"github.com/Ning0612/NuUpdater/internal/output"
	"github.com/Ning0612/NuUpdater/internal/service"
)

// errNoData fails a one-shot cycle in which no satellite returned data
var errNoData = errors.New("could not get data for any satellite")

func newFetchCmd(a *app) *cobra.Command {
	var local, createOutput bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one update cycle now",
		Long: `Run a manual update cycle. When a daemon is running it is asked to run
the cycle, otherwise the cycle runs in this process. A manual cycle never
changes the automatic countdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !local {
				err := a.pidFile().Trigger()
				switch {
				case err == nil:
					a.printer.Success("Asked the running daemon to update")
					return nil
				case errors.Is(err, daemon.ErrNoDaemon):
					a.printer.Info("No running daemon, updating in this process")
				case errors.Is(err, daemon.ErrSignalUnsupported):
					a.printer.Info("Cannot signal the daemon on this platform, updating in this process")
				default:
					return err
				}
			}
			return a.fetchLocal(cmd.Context(), createOutput)
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "always run the cycle in this process")
	cmd.Flags().BoolVar(&createOutput, "create-output", false, "create the output file if it does not exist")
	return cmd
}

func (a *app) fetchLocal(ctx context.Context, createOutput bool) error {
	svc, err := service.NewDaemonService(a.cfg, service.DaemonOptions{
		CreateOutput: createOutput,
		Reporter:     output.NewEventPrinter(a.printer),
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.RunOnce(ctx)
	if err != nil {
		return err
	}
	if res.WriteErr != nil {
		return res.WriteErr
	}
	if res.Status() == domain.CycleFailed {
		return errNoData
	}
	return nil
}
