package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"jobmate/marketplace-service/internal/config"
	"jobmate/marketplace-service/internal/db"
	"jobmate/marketplace-service/internal/notify"
)

// EventsCmd tails domain events from Redis.
func EventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print marketplace events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.RedisURL == "" {
				return fmt.Errorf("REDIS_URL is required to tail events")
			}
			rdb, err := db.NewRedisClient(cmd.Context(), cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sub := notify.NewRedisPublisher(rdb).Subscribe(ctx, notify.AllEvents...)
			defer sub.Close()

			channel := color.New(color.FgCyan)
			msgs := sub.Channel()
			for {
				select {
				case <-ctx.Done():
					return nil
				case msg, ok := <-msgs:
					if !ok {
						return nil
					}
					fmt.Printf("%s %s\n", channel.Sprint(msg.Channel), msg.Payload)
				}
			}
		},
	}
}
