package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/GetMoreSeo/internal/domain/kafka"
)

// ScheduleEventsKafka publishes schedule events as protobuf Structs keyed by
// schedule id, so all events of one schedule land on one partition.
type ScheduleEventsKafka struct {
	p *Producer
}

func NewScheduleEventsKafka(p *Producer) *ScheduleEventsKafka { return &ScheduleEventsKafka{p: p} }

const EventScheduleExecuted = "schedule_executed"

var _ kafka.ScheduleEvents = (*ScheduleEventsKafka)(nil)

func (e *ScheduleEventsKafka) PublishScheduleExecuted(ctx context.Context, ev kafka.ScheduleExecuted) error {
	msg, err := EncodeScheduleExecuted(ev)
	if err != nil {
		return err
	}
	return e.p.PublishProto(ctx, []byte(ev.ScheduleID.String()), EventScheduleExecuted, msg)
}

func EncodeScheduleExecuted(ev kafka.ScheduleExecuted) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		"type":        EventScheduleExecuted,
		"schedule_id": ev.ScheduleID.String(),
		"user_id":     ev.UserID.String(),
		"blog_id":     ev.BlogID.String(),
		"website_url": ev.Target,
		"ran_at":      ev.RanAt.UTC().Format(time.RFC3339),
		"next_run":    ev.NextRun.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encode schedule_executed: %w", err)
	}
	return s, nil
}

func DecodeScheduleExecuted(s *structpb.Struct) (kafka.ScheduleExecuted, error) {
	f := s.GetFields()
	str := func(k string) string { return f[k].GetStringValue() }

	var (
		ev  kafka.ScheduleExecuted
		err error
	)
	if ev.ScheduleID, err = uuid.Parse(str("schedule_id")); err != nil {
		return ev, fmt.Errorf("schedule_id: %w", err)
	}
	if ev.UserID, err = uuid.Parse(str("user_id")); err != nil {
		return ev, fmt.Errorf("user_id: %w", err)
	}
	if ev.BlogID, err = uuid.Parse(str("blog_id")); err != nil {
		return ev, fmt.Errorf("blog_id: %w", err)
	}
	ev.Target = str("website_url")
	if ev.RanAt, err = time.Parse(time.RFC3339, str("ran_at")); err != nil {
		return ev, fmt.Errorf("ran_at: %w", err)
	}
	if ev.NextRun, err = time.Parse(time.RFC3339, str("next_run")); err != nil {
		return ev, fmt.Errorf("next_run: %w", err)
	}
	return ev, nil
}
