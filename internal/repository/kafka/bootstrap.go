package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/GetMoreSeo/internal/config/scheduler"
)

func topicSpec(cfg config.KafkaCfg) TopicSpec {
	return TopicSpec{
		Name:              cfg.Topic,
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: cfg.ReplicationFactor,
		Retention:         cfg.Retention,
		MaxWait:           5 * time.Second,
	}
}

// BootstrapProducer makes sure the events topic exists and returns a
// producer for it. A missing topic is logged, not fatal: the writer may
// still create it on first publish.
func BootstrapProducer(ctx context.Context, cfg config.KafkaCfg, logger *zap.Logger) *Producer {
	if err := EnsureTopic(ctx, cfg.Brokers, topicSpec(cfg), logger); err != nil {
		logger.Warn("ensure topic", zap.String("topic", cfg.Topic), zap.Error(err))
	}
	return NewProducer(cfg.Brokers, cfg.Topic).WithLogger(logger)
}

func BootstrapConsumer(ctx context.Context, cfg config.KafkaCfg, fromBeginning bool, logger *zap.Logger) *Consumer {
	if err := EnsureTopic(ctx, cfg.Brokers, topicSpec(cfg), logger); err != nil {
		logger.Warn("ensure topic", zap.String("topic", cfg.Topic), zap.Error(err))
	}
	return NewConsumer(&ConsumerConfig{
		Brokers:       cfg.Brokers,
		GroupID:       cfg.GroupID,
		Topic:         cfg.Topic,
		FromBeginning: fromBeginning,
		Logger:        logger,
	})
}
