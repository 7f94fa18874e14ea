package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
	"github.com/NordCoder/GetMoreSeo/internal/nextrun"
)

func init() {
	cmd := &cobra.Command{
		Use:   "next-run",
		Short: "Preview the next fire times of a recurrence",
		Long: `Compute upcoming fire times without touching the database.

Example:
  seoctl next-run --frequency monthly --day-of-month 31 --time 09:00 --count 4`,
		RunE: runNextRun,
	}
	f := cmd.Flags()
	f.StringP("frequency", "f", "daily", "daily, weekly or monthly")
	f.Int("day-of-week", 0, "0 (Sunday) to 6, for weekly")
	f.Int("day-of-month", 1, "1 to 31, for monthly")
	f.StringP("time", "t", "09:00", "time of day, HH:MM")
	f.String("tz", "UTC", "IANA timezone of the wall clock")
	f.String("from", "", "reference time, RFC3339 (default now)")
	f.IntP("count", "n", 5, "number of fire times")
	f.String("overflow", "rollover", "month overflow policy: rollover or clamp")
	rootCmd.AddCommand(cmd)
}

func runNextRun(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	freq, _ := f.GetString("frequency")
	tod, _ := f.GetString("time")
	tz, _ := f.GetString("tz")
	from, _ := f.GetString("from")
	count, _ := f.GetInt("count")
	ov, _ := f.GetString("overflow")

	s := &schedule.Schedule{
		Target:    "preview",
		Frequency: schedule.Frequency(strings.ToLower(freq)),
		TimeOfDay: tod,
		Timezone:  tz,
	}
	if f.Changed("day-of-week") {
		d, _ := f.GetInt("day-of-week")
		s.DayOfWeek = &d
	}
	if f.Changed("day-of-month") {
		d, _ := f.GetInt("day-of-month")
		s.DayOfMonth = &d
	}
	if err := s.Validate(); err != nil {
		return err
	}
	overflow, err := nextrun.ParseOverflow(ov)
	if err != nil {
		return err
	}
	r, err := nextrun.FromSchedule(s, time.UTC, overflow)
	if err != nil {
		return err
	}

	now := time.Now()
	if from != "" {
		if now, err = time.Parse(time.RFC3339, from); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}
	if count < 1 {
		count = 1
	}
	times, err := nextrun.Upcoming(r, now, count)
	if err != nil {
		return err
	}

	rows := make([]table.Row, 0, len(times))
	for i, t := range times {
		rows = append(rows, table.Row{i + 1, t.Format(time.RFC3339), t.UTC().Format(time.RFC3339), t.Weekday()})
	}
	renderTable(cmd.OutOrStdout(), table.Row{"#", "Local", "UTC", "Weekday"}, rows)
	return nil
}
