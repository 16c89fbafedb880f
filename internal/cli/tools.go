package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"stacksight/internal/amqp"
	"stacksight/internal/auth"
	"stacksight/internal/core"
	applog "stacksight/internal/log"
)

const defaultHashCost = 12

func newHashPasswordCommand() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the stored form of a password",
		Long:  "Print the stored form of a password. Without an argument the first line of stdin is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plaintext string
			if len(args) == 1 {
				plaintext = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read password: %w", err)
				}
				plaintext = strings.TrimRight(line, "\r\n")
			}
			if plaintext == "" {
				return core.ErrEmptyPassword
			}

			hasher, err := auth.NewHasher(cost)
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(plaintext)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", defaultHashCost, "bcrypt cost factor")

	return cmd
}

func newEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Consume published events and log them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(false)
			if err != nil {
				return err
			}
			if cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}
			logger := SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentAMQP)

			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				return fmt.Errorf("connect AMQP: %w", err)
			}
			defer client.Close()

			ctx, stop := SignalContext(cmd.Context())
			defer stop()

			logger.Info("Consuming events", "queue", cfg.AMQPQueue)
			err = client.Consume(ctx, logEvent(logger))
			if errors.Is(err, context.Canceled) {
				logger.Info("Consumer stopped")
				return nil
			}
			return err
		},
	}
}

func logEvent(logger *applog.Logger) func(context.Context, *amqp.EventMessage) error {
	return func(ctx context.Context, msg *amqp.EventMessage) error {
		ev := msg.Event
		logger.InfoContext(ctx, "Event received",
			"id", msg.ID,
			applog.FieldEvent, ev.Type,
			applog.FieldUsername, ev.Username,
			applog.FieldAccount, ev.AccountNumber,
			applog.FieldPeriod, ev.Period,
			applog.FieldAmount, ev.Amount,
			"occurred_at", ev.OccurredAt)
		return nil
	}
}
