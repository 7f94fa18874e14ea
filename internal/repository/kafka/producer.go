package kafka

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

var mPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kafka_messages_published_total",
	Help: "Messages written to Kafka, by topic, event type and result.",
}, []string{"topic", "event", "result"})

type Producer struct {
	w     *kafka.Writer
	topic string
	log   *zap.Logger
}

// NewProducer writes to topic with acks from all replicas. Events are keyed
// by schedule, so the hash balancer keeps one schedule on one partition.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			Compression:            kafka.Snappy,
			BatchTimeout:           50 * time.Millisecond,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
		log:   zap.L().With(zap.String("component", "kafka.producer"), zap.String("topic", topic)),
	}
}

func (p *Producer) WithLogger(l *zap.Logger) *Producer {
	if l == nil {
		return p
	}
	cp := *p
	cp.log = l.With(zap.String("component", "kafka.producer"), zap.String("topic", p.topic))
	return &cp
}

// PublishProto writes m under key, tagging it with eventType and the
// caller's trace context.
func (p *Producer) PublishProto(ctx context.Context, key []byte, eventType string, m proto.Message) error {
	value, err := proto.Marshal(m)
	if err != nil {
		mPublished.WithLabelValues(p.topic, eventType, "marshal_error").Inc()
		return err
	}

	ctx, span := otel.Tracer("kafka.producer").Start(ctx, "kafka.produce "+eventType,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingOperationPublish,
		),
	)
	defer span.End()

	hdrs := []kafka.Header{{Key: HeaderEventType, Value: []byte(eventType)}}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{&hdrs})

	if err := p.w.WriteMessages(ctx, kafka.Message{Key: key, Value: value, Headers: hdrs}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		mPublished.WithLabelValues(p.topic, eventType, "error").Inc()
		p.log.Error("kafka write failed", zap.String("event", eventType), zap.ByteString("key", key), zap.Error(err))
		return err
	}
	mPublished.WithLabelValues(p.topic, eventType, "ok").Inc()
	p.log.Debug("event published",
		zap.String("event", eventType),
		zap.ByteString("key", key),
		zap.Int("value_len", len(value)),
	)
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }
