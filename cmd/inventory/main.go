package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/smallbiznis/inventory/internal/clock"
	"github.com/smallbiznis/inventory/internal/config"
	"github.com/smallbiznis/inventory/internal/observability"
	"github.com/smallbiznis/inventory/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var version = "0.1.0-dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "inventory",
		Short:         "Host inventory with canonical fact deduplication",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newConsumeCmd(),
		newMigrateCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}

// coreModules are shared by every command.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
}

// runApp starts the app and blocks until ctx is cancelled or a component
// asks for shutdown.
func runApp(ctx context.Context, opts ...fx.Option) error {
	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case sig := <-app.Wait():
		if sig.ExitCode != 0 {
			stopApp(app)
			return fmt.Errorf("shutdown requested with exit code %d", sig.ExitCode)
		}
	}

	stopApp(app)
	return nil
}

func stopApp(app *fx.App) {
	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	_ = app.Stop(stopCtx)
}
