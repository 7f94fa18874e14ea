package api_gateway_config

import (
	"time"

	sched "github.com/NordCoder/GetMoreSeo/internal/config/scheduler"
	pg "github.com/NordCoder/GetMoreSeo/internal/repository/postgres"
)

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type Auth struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// Cron guards the sweep endpoint hit by an external scheduler.
type Cron struct {
	Secret string `mapstructure:"secret"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimit struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type Config struct {
	App       sched.App          `mapstructure:"app"`
	Server    Server             `mapstructure:"server"`
	DB        pg.Config          `mapstructure:"db"`
	OTEL      sched.OTEL         `mapstructure:"otel"`
	Log       sched.Log          `mapstructure:"log"`
	Auth      Auth               `mapstructure:"auth"`
	Cron      Cron               `mapstructure:"cron"`
	Redis     Redis              `mapstructure:"redis"`
	RateLimit RateLimit          `mapstructure:"ratelimit"`
	Sched     sched.SchedCfg     `mapstructure:"sched"`
	Generator sched.GeneratorCfg `mapstructure:"generator"`
	Scraper   sched.ScraperCfg   `mapstructure:"scraper"`
	Breaker   sched.BreakerCfg   `mapstructure:"breaker"`
	Kafka     sched.KafkaCfg     `mapstructure:"kafka"`
}

// SweepConfig is the subset the in-process sweep needs, in the scheduler's
// shape.
func (c *Config) SweepConfig() *sched.Config {
	return &sched.Config{
		App:       c.App,
		DB:        c.DB,
		Sched:     c.Sched,
		Generator: c.Generator,
		Scraper:   c.Scraper,
		Breaker:   c.Breaker,
		Kafka:     c.Kafka,
	}
}
