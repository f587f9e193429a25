package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"movie-shop/config"
	"movie-shop/internal/broker"
	"movie-shop/internal/util"
	"movie-shop/internal/worker"

	"github.com/spf13/cobra"
)

func eventsCmd() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail the payment events topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Read()
			if err := setup(cfg); err != nil {
				return err
			}
			defer util.SyncLogger()

			if !cfg.Kafka.Enabled() {
				return fmt.Errorf("KAFKA_BROKERS is not set")
			}
			if group == "" {
				group = cfg.Kafka.ConsumerGroup
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayments, group)
			w := worker.NewEventsWorker(consumer)
			defer w.Stop()

			return w.Start(ctx)
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "consumer group (default KAFKA_CONSUMER_GROUP)")
	return cmd
}
