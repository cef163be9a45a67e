package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/events"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Subscribe to entity change events and enqueue them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := appFrom(cmd)
		ctx := cmd.Context()

		ps := a.Config.PubSub
		if ps.ProjectID == "" || ps.SubscriptionID == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.subscription_id must be configured")
		}

		client, err := pubsub.NewClient(ctx, ps.ProjectID)
		if err != nil {
			return fmt.Errorf("create pubsub client: %w", err)
		}
		defer client.Close()

		subscriber := events.NewSubscriber(client, events.TypeClassifier{}, a.Logger)
		a.Logger.Info("Listening for entity changes",
			zap.String("subscription", ps.SubscriptionID))

		return subscriber.Listen(ctx, ps.SubscriptionID, func(ctx context.Context, change events.Change) error {
			a.Enqueuer.Enqueue(ctx, change.EntityType, change.EntityID, change.StoreIDs)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
