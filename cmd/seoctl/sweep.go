package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	pg "github.com/NordCoder/GetMoreSeo/internal/repository/postgres"
	"github.com/NordCoder/GetMoreSeo/internal/services/scheduler"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one sweep over due schedules and print the report",
		RunE:  runSweep,
	}
	cmd.Flags().BoolP("json", "j", false, "print the raw report as JSON")
	rootCmd.AddCommand(cmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	uc, err := scheduler.NewFromConfig(cfg, db, l)
	if err != nil {
		return err
	}
	rep, err := scheduler.New(l, uc, &cfg.Sched).Sweep(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return renderJSON(out, rep)
	}
	printReport(cmd, rep)
	return nil
}

func printReport(cmd *cobra.Command, rep *scheduler.Report) {
	out := cmd.OutOrStdout()
	if rep.Considered == 0 {
		fmt.Fprintln(out, rep.Message)
		return
	}
	rows := make([]table.Row, 0, len(rep.Outcomes))
	for _, o := range rep.Outcomes {
		blogID := "-"
		if o.ResultID != nil {
			blogID = o.ResultID.String()
		}
		rows = append(rows, table.Row{o.ScheduleID, o.Target, o.Status, blogID, fmtTime(o.NextRun), o.Error})
	}
	renderTable(out, table.Row{"Schedule", "Website", "Status", "Blog post", "Next run", "Error"}, rows)
	fmt.Fprintf(out, "considered=%d succeeded=%d failed=%d partial=%d\n",
		rep.Considered, rep.Succeeded, rep.Failed, rep.PartialFailed)
}
