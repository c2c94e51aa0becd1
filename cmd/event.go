package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/frahmantamala/task-dashboard/internal/core/events"
	"github.com/frahmantamala/task-dashboard/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish task change events on an in-process bus for debugging`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test task event",
	Long:  `Publish a task event (task.created, task.updated, task.deleted) to an in-process bus and log what its handlers receive`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishTestEvent(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var (
	eventTaskID   string
	eventDivision string
	eventActorID  string
)

func publishTestEvent(eventType string) error {
	if !slices.Contains(events.TaskEventTypes, eventType) {
		return fmt.Errorf("unknown event type %q, expected one of %v", eventType, events.TaskEventTypes)
	}

	logger := logger.LoggerWrapper()
	eventBus := events.NewEventBus(logger)

	eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		logger.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	event := events.NewTaskChangedEvent(eventType, eventTaskID, eventDivision, eventActorID)
	logger.Info("publishing test event", "event_type", eventType, "event_id", event.ID)

	if err := eventBus.Publish(context.Background(), event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eventBus.Wait()
	logger.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventTaskID, "task-id", "test-task", "Task id carried by the event")
	publishEventCmd.Flags().StringVar(&eventDivision, "division", "Engineering", "Division carried by the event")
	publishEventCmd.Flags().StringVar(&eventActorID, "actor-id", "cli", "Actor id carried by the event")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
