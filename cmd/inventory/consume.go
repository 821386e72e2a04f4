package main

import (
	"github.com/smallbiznis/inventory/internal/host"
	"github.com/smallbiznis/inventory/internal/lock"
	"github.com/smallbiznis/inventory/internal/metricspush"
	"github.com/smallbiznis/inventory/internal/queue"
	"github.com/smallbiznis/inventory/pkg/redisclient"
	"github.com/spf13/cobra"
)

func newConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Consume host records from the ingress stream",
		Long:  "Reads add_host messages from the Redis ingress stream, deduplicates them and emits host events.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(),
				coreModules(),
				redisclient.Module,
				lock.Module,
				host.Module,
				queue.Module,
				queue.ConsumerModule,
				metricspush.Module,
			)
		},
	}
}
