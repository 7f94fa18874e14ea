package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var mConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kafka_messages_consumed_total",
	Help: "Messages fetched from Kafka, by topic and handling result.",
}, []string{"topic", "result"})

// Handler processes one message. A returned error leaves the offset
// uncommitted unless it wraps ErrUndecodable.
type Handler func(ctx context.Context, key, value []byte) error

// Consumer reads the events topic as part of a consumer group and commits
// an offset only after its handler accepted the message.
type Consumer struct {
	reader *kafka.Reader
	log    *zap.Logger
}

type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string
	// FromBeginning applies only to a group with no committed offsets.
	FromBeginning bool
	Logger        *zap.Logger
}

func (cfg *ConsumerConfig) readerConfig() kafka.ReaderConfig {
	rc := kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           kafka.LastOffset,
		WatchPartitionChanges: true,
		MinBytes:              1e3,
		MaxBytes:              10e6,
		SessionTimeout:        10 * time.Second,
		RebalanceTimeout:      15 * time.Second,
		HeartbeatInterval:     3 * time.Second,
	}
	if cfg.FromBeginning {
		rc.StartOffset = kafka.FirstOffset
	}
	return rc
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	log := cfg.Logger
	if log == nil {
		log = zap.L()
	}
	return &Consumer{
		reader: kafka.NewReader(cfg.readerConfig()),
		log: log.With(
			zap.String("component", "kafka.consumer"),
			zap.String("topic", cfg.Topic),
			zap.String("group", cfg.GroupID),
		),
	}
}

const (
	fetchBackoffMin = 200 * time.Millisecond
	fetchBackoffMax = 5 * time.Second
)

// Consume blocks until ctx is done. Fetch failures back off exponentially;
// handler failures leave the message uncommitted so the group redelivers it
// after a rebalance or restart.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	c.log.Info("consumer started")
	defer c.log.Info("consumer stopped")

	backoff := fetchBackoffMin
	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			lvl := zap.WarnLevel
			if errors.Is(err, io.EOF) {
				lvl = zap.DebugLevel
			}
			c.log.Log(lvl, "fetch failed", zap.Error(err), zap.Duration("backoff", backoff))
			if !sleepCtx(ctx, backoff) {
				break
			}
			backoff = min(backoff*2, fetchBackoffMax)
			continue
		}
		backoff = fetchBackoffMin

		if err := c.handle(ctx, h, msg); err != nil {
			if !errors.Is(err, ErrUndecodable) {
				continue
			}
			c.log.Warn("skipping undecodable message",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Warn("commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) handle(ctx context.Context, h Handler, msg kafka.Message) error {
	parent := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{&msg.Headers})
	msgCtx, span := otel.Tracer("kafka.consumer").Start(parent, "kafka.consume "+headerCarrier{&msg.Headers}.Get(HeaderEventType),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(msg.Topic),
			attribute.Int("messaging.kafka.destination.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
		),
	)
	defer span.End()

	err := h(msgCtx, msg.Key, msg.Value)
	switch {
	case err == nil:
		mConsumed.WithLabelValues(msg.Topic, "ok").Inc()
	case errors.Is(err, ErrUndecodable):
		span.RecordError(err)
		mConsumed.WithLabelValues(msg.Topic, "undecodable").Inc()
	default:
		span.RecordError(err)
		mConsumed.WithLabelValues(msg.Topic, "error").Inc()
		c.log.Error("handler error", zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
	}
	return err
}

func (c *Consumer) Close() error { return c.reader.Close() }
