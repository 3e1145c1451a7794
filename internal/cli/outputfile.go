package cli

import (
	"github.com/spf13/cobra"

	"github.com/Ning0612/NuUpdater/internal/sink"
)

func newOutputCmd(a *app) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "output [PATH]",
		Short: "Show or change the output file",
		Long: `Show the output file, or choose a new one. The file must exist unless
--create is given. A running daemon writes to the new file from the next
cycle on.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := a.controller()

			if len(args) == 0 {
				st, err := ctrl.Settings()
				if err != nil {
					return err
				}
				a.printer.Print("%s", st.OutputPath(a.fs, sink.DefaultFilename))
				return nil
			}

			st, err := ctrl.SetOutput(args[0], create)
			if err != nil {
				return err
			}
			a.printer.Success("Output file set to %s", st.OutputFilename)
			return nil
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "create the file if it does not exist")
	return cmd
}
