package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/journeys/internal/events"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream journey events from NATS",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// watch only needs the event bus.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadDotEnv(); err != nil {
			return err
		}
		setupLogging()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {},
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("nats-url")
		if url == "" {
			url = os.Getenv("JOURNEYS_NATS_URL")
		}
		if url == "" {
			return fmt.Errorf("--nats-url is required (or set JOURNEYS_NATS_URL)")
		}
		topic, _ := cmd.Flags().GetString("topic")

		sub, err := events.NewNATSSubscriber(url)
		if err != nil {
			return err
		}
		defer sub.Close()

		ch, unsubscribe, err := sub.Subscribe(topic)
		if err != nil {
			return err
		}
		defer unsubscribe()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(os.Stderr, "Watching %s on %s (Ctrl-C to stop)\n", topic, url)
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				printEvent(os.Stdout, msg, time.Now())
			}
		}
	},
}

// printEvent writes one event line. In JSON mode the raw payload is wrapped
// with its topic.
func printEvent(w io.Writer, msg events.Message, at time.Time) {
	if jsonOutput {
		fmt.Fprintf(w, "{\"topic\":%q,\"event\":%s}\n", msg.Topic, msg.Data)
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", styler.Muted(at.Format("15:04:05")), styler.Accent(msg.Topic), msg.Data)
}

func init() {
	watchCmd.Flags().String("nats-url", "", "NATS server URL (default $JOURNEYS_NATS_URL)")
	watchCmd.Flags().String("topic", events.TopicAll, "subject to subscribe to")
}
