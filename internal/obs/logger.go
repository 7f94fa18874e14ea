package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects the zap preset. Pretty switches to the console encoder
// for local runs.
type LogConfig struct {
	Level  string
	Pretty bool
	App    string
	Env    string
	Ver    string
}

func (c LogConfig) level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// NewLogger builds the process logger, installs it as the zap global and
// routes the standard library logger through it. Unknown levels fall back
// to info.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(c.level())
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	// sweep reports log one line per schedule; sampling would drop them
	cfg.Sampling = nil

	fields := []zap.Field{zap.String("service", c.App), zap.String("env", c.Env)}
	if c.Ver != "" {
		fields = append(fields, zap.String("version", c.Ver))
	}
	l, err := cfg.Build(zap.Fields(fields...))
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l)
	return l, nil
}
