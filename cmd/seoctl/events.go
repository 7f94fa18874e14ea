package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	kafkaRepo "github.com/NordCoder/GetMoreSeo/internal/repository/kafka"
)

func init() {
	events := &cobra.Command{
		Use:   "events",
		Short: "Work with the schedule events topic",
	}
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print schedule_executed events as they arrive",
		RunE:  runEventsTail,
	}
	tail.Flags().Bool("from-beginning", false, "start at the oldest retained event")
	tail.Flags().String("group", "seoctl-tail", "consumer group id")
	tail.Flags().BoolP("json", "j", false, "print events as JSON lines")

	initTopic := &cobra.Command{
		Use:   "init",
		Short: "Create the events topic if it does not exist",
		RunE:  runEventsInit,
	}
	initTopic.Flags().Duration("wait", 30*time.Second, "how long to wait for the topic to become ready")

	events.AddCommand(tail, initTopic)
	rootCmd.AddCommand(events)
}

func runEventsTail(cmd *cobra.Command, _ []string) error {
	fromBeginning, _ := cmd.Flags().GetBool("from-beginning")
	group, _ := cmd.Flags().GetString("group")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is empty")
	}

	ctx := cmd.Context()
	kcfg := cfg.Kafka
	kcfg.GroupID = group
	c := kafkaRepo.BootstrapConsumer(ctx, kcfg, fromBeginning, l)
	defer func() { _ = c.Close() }()

	out := cmd.OutOrStdout()
	h := kafkaRepo.ProtoHandler(
		func() *structpb.Struct { return &structpb.Struct{} },
		func(_ context.Context, _ []byte, msg *structpb.Struct) error {
			ev, err := kafkaRepo.DecodeScheduleExecuted(msg)
			if err != nil {
				// malformed events are skipped so the group keeps moving
				l.Warn("skip event", zap.Error(err))
				return nil
			}
			if asJSON {
				return renderJSON(out, ev)
			}
			fmt.Fprintf(out, "%s  schedule=%s user=%s blog=%s site=%s next=%s\n",
				ev.RanAt.UTC().Format("2006-01-02T15:04:05Z"), ev.ScheduleID, ev.UserID, ev.BlogID,
				ev.Target, ev.NextRun.UTC().Format("2006-01-02T15:04:05Z"))
			return nil
		},
	)

	fmt.Fprintf(cmd.ErrOrStderr(), "tailing %s, ctrl-c to stop\n", kcfg.Topic)
	if err := c.Consume(ctx, h); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runEventsInit(cmd *cobra.Command, _ []string) error {
	wait, _ := cmd.Flags().GetDuration("wait")

	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	spec := kafkaRepo.TopicSpec{
		Name:              cfg.Kafka.Topic,
		NumPartitions:     cfg.Kafka.Partitions,
		ReplicationFactor: cfg.Kafka.ReplicationFactor,
		Retention:         cfg.Kafka.Retention,
		MaxWait:           wait,
	}
	if err := kafkaRepo.EnsureTopic(cmd.Context(), cfg.Kafka.Brokers, spec, l); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "topic %q ready\n", spec.Name)
	return nil
}
