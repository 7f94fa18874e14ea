package scheduler_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "scheduler", cfg.App.Name)
	assert.True(t, cfg.Kafka.Enable)
	assert.False(t, cfg.Leader.Enable)
	assert.Equal(t, int64(727001), cfg.Leader.LockKey)
	assert.Equal(t, 5, cfg.Sched.MaxFailures)
	assert.Equal(t, time.Duration(0), cfg.Sched.Lookahead)
	assert.Equal(t, 15*time.Minute, cfg.Sched.ClaimTTL)
	assert.Equal(t, "rollover", cfg.Sched.MonthOverflow)
	assert.Equal(t, time.Minute, cfg.Breaker.Cooldown)
	assert.Equal(t, int64(2<<20), cfg.Scraper.MaxBody)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCHED_MAX_FAILURES", "3")
	t.Setenv("SCHED_MONTH_OVERFLOW", "clamp")
	t.Setenv("LEADER_ENABLE", "true")
	t.Setenv("GENERATOR_MODEL", "gpt-4o")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Sched.MaxFailures)
	assert.Equal(t, "clamp", cfg.Sched.MonthOverflow)
	assert.True(t, cfg.Leader.Enable)
	assert.Equal(t, "gpt-4o", cfg.Generator.Model)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: prod
sched:
  cron: "*/5 * * * *"
  parallelism: 2
kafka:
  enable: false
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "*/5 * * * *", cfg.Sched.Cron)
	assert.Equal(t, 2, cfg.Sched.Parallelism)
	assert.False(t, cfg.Kafka.Enable)

	oc := cfg.OTEL.AsOTELConfig(cfg.App)
	assert.Equal(t, "scheduler", oc.ServiceName)
	assert.Equal(t, "prod", oc.Environment)
}
