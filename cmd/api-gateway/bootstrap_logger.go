package main

import (
	"go.uber.org/zap"

	config "github.com/NordCoder/GetMoreSeo/internal/config/api-gateway"
	"github.com/NordCoder/GetMoreSeo/internal/obs"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
}
