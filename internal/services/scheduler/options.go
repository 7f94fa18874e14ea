package scheduler

import (
	"fmt"
	"time"

	config "github.com/NordCoder/GetMoreSeo/internal/config/scheduler"
	"github.com/NordCoder/GetMoreSeo/internal/nextrun"
)

func OptionsFromConfig(c *config.SchedCfg) (Options, error) {
	loc := time.UTC
	if c.Timezone != "" {
		l, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return Options{}, fmt.Errorf("sched.timezone: %w", err)
		}
		loc = l
	}
	overflow, err := nextrun.ParseOverflow(c.MonthOverflow)
	if err != nil {
		return Options{}, fmt.Errorf("sched.month_overflow: %w", err)
	}
	return Options{
		BatchLimit:  c.BatchLimit,
		Lookahead:   c.Lookahead,
		ClaimTTL:    c.ClaimTTL,
		MaxFailures: c.MaxFailures,
		Parallelism: c.Parallelism,
		JobTimeout:  c.JobTimeout,
		Location:    loc,
		Overflow:    overflow,
	}, nil
}
