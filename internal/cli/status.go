package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ning0612/NuUpdater/internal/sink"
	"github.com/Ning0612/NuUpdater/internal/state"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show settings, daemon state and the last cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := a.controller()
			st, err := ctrl.Settings()
			if err != nil {
				return err
			}
			cat, sel, err := ctrl.Catalog()
			if err != nil {
				return err
			}

			p := a.printer
			indicator := "stopped"
			daemonLine := p.StatusBadge(indicator)
			if pid, err := a.pidFile().Read(); err == nil {
				if running, _ := a.pidFile().IsRunning(); running {
					indicator = "running"
					daemonLine = fmt.Sprintf("%s (pid %d)", p.StatusBadge(indicator), pid)
				}
			}

			outputPath := st.OutputPath(a.fs, sink.DefaultFilename)
			if !sink.Exists(a.fs, outputPath) {
				outputPath += " " + p.Dim("(missing)")
			}

			p.Header("NuUpdater")
			p.Print("Auto-update:  %s", daemonLine)
			p.Print("Interval:     %s", st.Interval())
			p.Print("Output:       %s", outputPath)
			p.Print("Selected:     %d of %d satellites", len(sel), cat.Len())
			if len(sel) > 0 {
				p.Print("              %s", strings.Join(sel, ", "))
			}

			mgr, err := state.NewManager(a.cfg.State.Dir)
			if err != nil {
				return err
			}
			defer mgr.Close()

			history, err := mgr.GetHistory(1)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				p.Print("Last cycle:   %s", p.Dim("none"))
				return nil
			}

			last := history[0]
			p.Print("Last cycle:   %s %s, %d of %d satellites, %s ago",
				p.StatusBadge(last.Status), last.Trigger, last.Successes, last.Total,
				time.Since(last.EndTime).Round(time.Second))
			if last.Error != "" {
				p.Print("              %s", last.Error)
			}
			return nil
		},
	}
}
