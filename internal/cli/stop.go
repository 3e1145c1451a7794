package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ning0612/NuUpdater/internal/daemon"
)

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pid := a.pidFile()
			if err := pid.Kill(); err != nil {
				if errors.Is(err, daemon.ErrNoDaemon) {
					return fmt.Errorf("auto-update is not running: %w", err)
				}
				return err
			}
			a.printer.Success("Stop requested")
			return nil
		},
	}
}
