package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/feedwatch/internal/config"
	"github.com/syntrixbase/feedwatch/internal/core/pubsub"
	natspubsub "github.com/syntrixbase/feedwatch/internal/core/pubsub/nats"
	"github.com/syntrixbase/feedwatch/internal/relay"
)

func newTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail [collection]",
		Short: "Print change sets published by the relay",
		Long: `Subscribes to the relay stream and prints one line per message.
With a collection argument only that collection is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTail,
	}
	cmd.Flags().Bool("all", false, "replay messages already in the stream")
	cmd.Flags().String("durable", "", "durable consumer name")
	return cmd
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Relay.Provider != config.RelayProviderNATS {
		return fmt.Errorf("tail reads the NATS stream, relay.provider is %q", cfg.Relay.Provider)
	}
	all, _ := cmd.Flags().GetBool("all")
	durable, _ := cmd.Flags().GetString("durable")

	filter := cfg.Relay.SubjectPrefix + ".>"
	if len(args) == 1 {
		filter = pubsub.Subject(cfg.Relay.SubjectPrefix, relay.SubjectToken(args[0]))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	provider := natspubsub.NewProvider(cfg.Relay.NatsURL, "feedwatch-tail", logger)
	if err := provider.Connect(ctx); err != nil {
		return err
	}
	defer provider.Close()

	consumer, err := provider.NewConsumer(pubsub.ConsumerOptions{
		StreamName:    cfg.Relay.StreamName,
		ConsumerName:  durable,
		FilterSubject: filter,
		DeliverNew:    !all,
	})
	if err != nil {
		return err
	}
	msgs, err := consumer.Subscribe(ctx)
	if err != nil {
		return err
	}
	return printMessages(ctx, cmd.OutOrStdout(), msgs)
}

// printMessages writes one line per message until msgs is closed or ctx is
// done. Messages that cannot be printed are terminated.
func printMessages(ctx context.Context, out io.Writer, msgs <-chan pubsub.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(out, "%s %s\n", msg.Subject(), msg.Data()); err != nil {
				_ = msg.Term()
				return err
			}
			_ = msg.Ack()
		}
	}
}
