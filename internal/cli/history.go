package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Ning0612/NuUpdater/internal/state"
)

const historyTimeFormat = "2006-01-02 15:04:05"

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit   int
		cycleID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent update cycles",
		Long: `List recent update cycles, newest first. With --cycle the per-satellite
outcomes of one cycle are shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := state.NewManager(a.cfg.State.Dir)
			if err != nil {
				return err
			}
			defer mgr.Close()

			if cycleID != "" {
				return a.showCycle(mgr, cycleID)
			}

			records, err := mgr.GetHistory(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				a.printer.Print("No cycles recorded yet.")
				return nil
			}

			table := a.printer.NewTable([]string{"Started", "Trigger", "Status", "Satellites", "Written", "Cycle"})
			for _, r := range records {
				table.AddRow(
					r.StartTime.Local().Format(historyTimeFormat),
					r.Trigger,
					a.printer.StatusBadge(r.Status),
					fmt.Sprintf("%d/%d", r.Successes, r.Total),
					strconv.FormatBool(r.Written),
					r.CycleID,
				)
			}
			return table.Render()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of cycles to show")
	cmd.Flags().StringVar(&cycleID, "cycle", "", "show the satellites of one cycle")
	return cmd
}

func (a *app) showCycle(mgr *state.Manager, cycleID string) error {
	rec, err := mgr.GetCycle(cycleID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("cycle %s not found", cycleID)
	}

	p := a.printer
	p.Header("Cycle " + rec.CycleID)
	p.Print("Trigger:  %s", rec.Trigger)
	p.Print("Status:   %s", p.StatusBadge(rec.Status))
	p.Print("Started:  %s", rec.StartTime.Local().Format(historyTimeFormat))
	p.Print("Duration: %s", rec.EndTime.Sub(rec.StartTime))
	if rec.Written {
		p.Print("Written:  %s", rec.OutputPath)
	}
	if rec.Error != "" {
		p.Print("Error:    %s", rec.Error)
	}
	p.Print("")

	table := p.NewTable([]string{"Satellite", "Outcome", "Code", "Length", "Detail"})
	for _, s := range rec.Satellites {
		code := ""
		if s.StatusCode != 0 {
			code = strconv.Itoa(s.StatusCode)
		}
		table.AddRow(s.Name, s.Outcome, code, strconv.Itoa(s.Length), s.Detail)
	}
	return table.Render()
}
