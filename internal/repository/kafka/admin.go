package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	// Retention sets retention.ms; zero keeps the broker default.
	Retention time.Duration
	MaxWait   time.Duration
}

func (s TopicSpec) withDefaults() TopicSpec {
	s.NumPartitions = max(s.NumPartitions, 1)
	s.ReplicationFactor = max(s.ReplicationFactor, 1)
	if s.MaxWait <= 0 {
		s.MaxWait = 5 * time.Second
	}
	return s
}

func (s TopicSpec) config() kafka.TopicConfig {
	tc := kafka.TopicConfig{
		Topic:             s.Name,
		NumPartitions:     s.NumPartitions,
		ReplicationFactor: s.ReplicationFactor,
	}
	if s.Retention > 0 {
		tc.ConfigEntries = append(tc.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(s.Retention.Milliseconds(), 10),
		})
	}
	return tc
}

// EnsureTopic creates the events topic if needed and polls metadata until
// its partitions are visible or spec.MaxWait runs out. An existing topic is
// not an error; a topic that never shows up only logs a warning.
func EnsureTopic(ctx context.Context, brokers []string, spec TopicSpec, log *zap.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if spec.Name == "" {
		return errors.New("topic name is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}
	spec = spec.withDefaults()
	log = log.With(zap.String("topic", spec.Name))

	client := &kafka.Client{Addr: kafka.TCP(brokers...), Timeout: spec.MaxWait}

	resp, err := client.CreateTopics(ctx, &kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{spec.config()},
	})
	if err != nil {
		log.Warn("create topics request", zap.Error(err))
		return fmt.Errorf("create topic %s: %w", spec.Name, err)
	}
	switch terr := resp.Errors[spec.Name]; {
	case terr == nil:
		log.Info("topic created",
			zap.Int("partitions", spec.NumPartitions),
			zap.Duration("retention", spec.Retention))
	case errors.Is(terr, kafka.TopicAlreadyExists):
		log.Debug("topic exists")
	default:
		return fmt.Errorf("create topic %s: %w", spec.Name, terr)
	}

	ctx, cancel := context.WithTimeout(ctx, spec.MaxWait)
	defer cancel()
	for {
		if n := partitions(ctx, client, spec.Name); n > 0 {
			log.Info("topic ready", zap.Int("partitions", n))
			return nil
		}
		select {
		case <-ctx.Done():
			log.Warn("topic not confirmed ready in time", zap.Duration("waited", spec.MaxWait))
			return nil
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func partitions(ctx context.Context, client *kafka.Client, topic string) int {
	md, err := client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{topic}})
	if err != nil {
		return 0
	}
	for _, t := range md.Topics {
		if t.Name == topic && t.Error == nil {
			return len(t.Partitions)
		}
	}
	return 0
}
