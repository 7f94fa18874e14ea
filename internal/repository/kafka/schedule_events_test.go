package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/GetMoreSeo/internal/domain/kafka"
)

func TestScheduleExecutedThroughProtoHandler(t *testing.T) {
	ev := kafka.ScheduleExecuted{
		ScheduleID: uuid.New(),
		UserID:     uuid.New(),
		BlogID:     uuid.New(),
		Target:     "https://acme.test",
		RanAt:      time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		NextRun:    time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
	}
	msg, err := EncodeScheduleExecuted(ev)
	require.NoError(t, err)
	assert.Equal(t, "schedule_executed", msg.GetFields()["type"].GetStringValue())

	value, err := proto.Marshal(msg)
	require.NoError(t, err)

	var got kafka.ScheduleExecuted
	h := ProtoHandler(func() *structpb.Struct { return &structpb.Struct{} },
		func(_ context.Context, key []byte, s *structpb.Struct) error {
			assert.Equal(t, ev.ScheduleID.String(), string(key))
			got, err = DecodeScheduleExecuted(s)
			return err
		})

	require.NoError(t, h(context.Background(), []byte(ev.ScheduleID.String()), value))
	assert.Equal(t, ev, got)
}

func TestDecodeScheduleExecutedRejectsGarbage(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"schedule_id": "nope"})
	require.NoError(t, err)
	_, err = DecodeScheduleExecuted(s)
	require.Error(t, err)
}

func TestHeaderCarrierReplacesKeys(t *testing.T) {
	hs := []kafkago.Header{{Key: HeaderEventType, Value: []byte(EventScheduleExecuted)}}
	c := headerCarrier{&hs}
	c.Set("traceparent", "00-abc-def-01")
	c.Set("traceparent", "00-abc-def-02")

	assert.Equal(t, "00-abc-def-02", c.Get("traceparent"))
	assert.Equal(t, EventScheduleExecuted, c.Get(HeaderEventType))
	assert.Equal(t, []string{HeaderEventType, "traceparent"}, c.Keys())
	assert.Len(t, hs, 2)
	assert.Empty(t, c.Get("missing"))
}

func TestProtoHandlerMarksUndecodable(t *testing.T) {
	h := ProtoHandler(
		func() *structpb.Struct { return &structpb.Struct{} },
		func(context.Context, []byte, *structpb.Struct) error { return nil },
	)
	err := h(context.Background(), nil, []byte{0xff, 0xff, 0xff})
	require.ErrorIs(t, err, ErrUndecodable)
}
