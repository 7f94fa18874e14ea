package scheduler_config

import (
	"time"

	"github.com/NordCoder/GetMoreSeo/internal/obs"
	pginfra "github.com/NordCoder/GetMoreSeo/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    app.Name,
		Env:    app.Env,
		Ver:    app.Version,
	}
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig(app App) *obs.OTELConfig {
	name := oc.ServiceName
	if name == "" {
		name = app.Name
	}
	return &obs.OTELConfig{
		Enable:         oc.Enable,
		Endpoint:       oc.OTLPEndpoint,
		ServiceName:    name,
		ServiceVersion: app.Version,
		Environment:    app.Env,
		SampleRatio:    oc.SampleRatio,
	}
}

type KafkaCfg struct {
	Enable            bool          `mapstructure:"enable"`
	Brokers           []string      `mapstructure:"brokers"`
	Topic             string        `mapstructure:"topic"`
	GroupID           string        `mapstructure:"group_id"`
	Partitions        int           `mapstructure:"partitions"`
	ReplicationFactor int           `mapstructure:"replication_factor"`
	Retention         time.Duration `mapstructure:"retention"`
}

type OutboxCfg struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	Wait          time.Duration `mapstructure:"wait"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
	// Delivered rows older than Retention are purged every PurgeEvery.
	Retention  time.Duration `mapstructure:"retention"`
	PurgeEvery time.Duration `mapstructure:"purge_every"`
	// MaxAttempts parks a message as FAILED once it has been picked this
	// many times. Zero retries forever.
	MaxAttempts int `mapstructure:"max_attempts"`
}

type LeaderCfg struct {
	Enable            bool          `mapstructure:"enable"`
	LockKey           int64         `mapstructure:"lock_key"`
	RetryInterval     time.Duration `mapstructure:"retry_interval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// SchedCfg drives the sweep and its trigger.
type SchedCfg struct {
	Cron          string        `mapstructure:"cron"`
	RunOnStart    bool          `mapstructure:"run_on_start"`
	BatchLimit    int           `mapstructure:"batch_limit"`
	Lookahead     time.Duration `mapstructure:"lookahead"`
	ClaimTTL      time.Duration `mapstructure:"claim_ttl"`
	MaxFailures   int           `mapstructure:"max_failures"`
	Parallelism   int           `mapstructure:"parallelism"`
	JobTimeout    time.Duration `mapstructure:"job_timeout"`
	Timezone      string        `mapstructure:"timezone"`
	MonthOverflow string        `mapstructure:"month_overflow"`
	Credits       bool          `mapstructure:"credits"`
	MetricsAddr   string        `mapstructure:"metrics_addr"`
}

type GeneratorCfg struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	ResearchModel string        `mapstructure:"research_model"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Temperature   float64       `mapstructure:"temperature"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RPS           float64       `mapstructure:"rps"`
	Burst         int           `mapstructure:"burst"`
}

type ScraperCfg struct {
	APIKey    string        `mapstructure:"api_key"`
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxBody   int64         `mapstructure:"max_body"`
	UserAgent string        `mapstructure:"user_agent"`
}

type BreakerCfg struct {
	Threshold int           `mapstructure:"threshold"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
}

type Config struct {
	App       App            `mapstructure:"app"`
	Log       Log            `mapstructure:"log"`
	OTEL      OTEL           `mapstructure:"otel"`
	DB        pginfra.Config `mapstructure:"db"`
	Kafka     KafkaCfg       `mapstructure:"kafka"`
	Outbox    OutboxCfg      `mapstructure:"outbox"`
	Leader    LeaderCfg      `mapstructure:"leader"`
	Sched     SchedCfg       `mapstructure:"sched"`
	Generator GeneratorCfg   `mapstructure:"generator"`
	Scraper   ScraperCfg     `mapstructure:"scraper"`
	Breaker   BreakerCfg     `mapstructure:"breaker"`
}
