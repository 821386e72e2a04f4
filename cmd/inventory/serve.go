package main

import (
	"github.com/smallbiznis/inventory/internal/host"
	"github.com/smallbiznis/inventory/internal/lock"
	"github.com/smallbiznis/inventory/internal/metricspush"
	"github.com/smallbiznis/inventory/internal/migration"
	"github.com/smallbiznis/inventory/internal/queue"
	"github.com/smallbiznis/inventory/internal/ratelimit"
	"github.com/smallbiznis/inventory/internal/server"
	"github.com/smallbiznis/inventory/pkg/redisclient"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	var (
		withConsumer bool
		skipMigrate  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Serves the host read and ingest API. With --with-consumer the queue consumer runs in the same process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []fx.Option{
				coreModules(),
				redisclient.Module,
				lock.Module,
				host.Module,
				queue.Module,
				metricspush.Module,
				ratelimit.Module,
			}
			if !skipMigrate {
				opts = append(opts, migration.Module)
			}
			if withConsumer {
				opts = append(opts, queue.ConsumerModule)
			}
			opts = append(opts, server.Module)

			return runApp(cmd.Context(), opts...)
		},
	}

	cmd.Flags().BoolVar(&withConsumer, "with-consumer", false, "Also consume the host ingress stream")
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply schema migrations on startup")

	return cmd
}
