package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ning0612/NuUpdater/internal/settings"
)

func newSelectCmd(a *app) *cobra.Command {
	var all, none bool

	cmd := &cobra.Command{
		Use:   "select [NAME...]",
		Short: "Choose which satellites are fetched",
		Long: `Replace the selection with the named satellites, in any order; cycles
always fetch in catalog order. Use --all or --none instead of names.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := 0
			for _, set := range []bool{all, none, len(args) > 0} {
				if set {
					modes++
				}
			}
			if modes != 1 {
				return errors.New("give satellite names, --all or --none")
			}

			ctrl := a.controller()
			var (
				st  *settings.Settings
				err error
			)
			switch {
			case all:
				st, err = ctrl.SelectAll()
			case none:
				st, err = ctrl.SelectNone()
			default:
				st, err = ctrl.Select(args...)
			}
			if err != nil {
				return err
			}

			cat, _ := st.Catalog()
			sel := st.Selection(cat)
			if sel.IsEmpty() {
				a.printer.Warning("No satellites selected; automatic cycles will be skipped")
				return nil
			}
			a.printer.Success("Selected %s", strings.Join(sel, ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "select every satellite")
	cmd.Flags().BoolVar(&none, "none", false, "clear the selection")
	return cmd
}
