package cli

import (
	"github.com/spf13/cobra"

	"github.com/Ning0612/NuUpdater/internal/domain"
)

func newIntervalCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interval [VALUE UNIT]",
		Short: "Show or change the update interval",
		Long: `Show the update interval, or set it from a positive value and a unit
(seconds, minutes or hours). A running daemon applies the new
interval when the current countdown next re-arms.`,
		Example: `  nuupdater interval 30 minutes
  nuupdater interval 1.5 hours`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := a.controller()

			if len(args) == 0 {
				st, err := ctrl.Settings()
				if err != nil {
					return err
				}
				a.printer.Print("%s", st.Interval())
				return nil
			}

			unit := string(domain.UnitHours)
			if len(args) == 2 {
				unit = args[1]
			}
			spec, err := domain.ParseInterval(args[0], unit)
			if err != nil {
				return err
			}
			if _, err := ctrl.SetInterval(spec); err != nil {
				return err
			}
			a.printer.Success("Interval set to %s", spec)
			return nil
		},
	}
}
