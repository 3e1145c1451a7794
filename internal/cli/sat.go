package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Ning0612/NuUpdater/internal/domain"
)

func newSatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sat",
		Aliases: []string{"satellite"},
		Short:   "Manage the satellite catalog",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List catalog entries",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cat, sel, err := a.controller().Catalog()
				if err != nil {
					return err
				}

				table := a.printer.NewTable([]string{"#", "Selected", "Name", "URL"})
				for i, sat := range cat.List() {
					mark := ""
					if sel.Contains(sat.Name) {
						mark = "*"
					}
					table.AddRow(strconv.Itoa(i+1), mark, sat.Name, sat.URL)
				}
				return table.Render()
			},
		},
		&cobra.Command{
			Use:   "add NAME URL",
			Short: "Add a satellite",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				sat := domain.Satellite{Name: args[0], URL: args[1]}.Normalize()
				if _, err := a.controller().AddSatellite(sat); err != nil {
					return err
				}
				a.printer.Success("Added %s", sat.Name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "update INDEX NAME URL",
			Short: "Replace the satellite at INDEX (as shown by sat list)",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				index, err := parseIndex(args[0])
				if err != nil {
					return err
				}
				sat := domain.Satellite{Name: args[1], URL: args[2]}.Normalize()
				if _, err := a.controller().UpdateSatellite(index, sat); err != nil {
					return err
				}
				a.printer.Success("Updated #%d to %s", index+1, sat.Name)
				return nil
			},
		},
		&cobra.Command{
			Use:     "remove INDEX",
			Aliases: []string{"rm"},
			Short:   "Remove the satellite at INDEX (as shown by sat list)",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				index, err := parseIndex(args[0])
				if err != nil {
					return err
				}
				removed, err := a.controller().RemoveSatellite(index)
				if err != nil {
					return err
				}
				a.printer.Success("Removed %s", removed.Name)
				return nil
			},
		},
	)

	return cmd
}

// parseIndex converts a 1-based list position to a catalog index
func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: index must be a positive number, got %q", domain.ErrValidation, s)
	}
	return n - 1, nil
}
