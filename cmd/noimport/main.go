package main

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/noimport/catalog"
	"github.com/isdmx/noimport/config"
	"github.com/isdmx/noimport/logger"
	"github.com/isdmx/noimport/mcpserver"
	"github.com/isdmx/noimport/probe"
	"github.com/isdmx/noimport/prober"
	"github.com/isdmx/noimport/sandbox"
)

func main() {
	fx.New(
		graph(),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	).Run()
}

// graph is the application's dependency graph
func graph() fx.Option {
	return fx.Options(
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			catalog.NewFromConfig,

			fx.Annotate(
				prober.NewFromConfig,
				fx.As(new(probe.ModuleProber)),
			),
			sandbox.NewLauncherFromConfig,
			sandbox.NewFetcher,

			fx.Annotate(
				probe.New,
				fx.As(fx.Self()),
				fx.As(new(mcpserver.ProbeRunner)),
			),
			mcpserver.New,
		),

		fx.Invoke(run),
	)
}

func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *zap.Logger, cat *catalog.Catalog, runner *probe.Runner, server *mcpserver.MCPServer) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			switch cfg.Server.Transport {
			case config.TransportStdio:
				go func() {
					if err := server.ServeStdio(); err != nil {
						log.Error("MCP stdio server stopped", zap.Error(err))
						_ = shutdowner.Shutdown(fx.ExitCode(1))
					}
				}()
			case config.TransportHTTP:
				go func() {
					if err := server.ServeHTTP(); err != nil {
						log.Error("MCP HTTP server stopped", zap.Error(err))
						_ = shutdowner.Shutdown(fx.ExitCode(1))
					}
				}()
			default:
				go func() {
					_ = shutdowner.Shutdown(fx.ExitCode(runOnce(ctx, log, cfg, cat, runner)))
				}()
			}
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			// Syncing stderr fails on some terminals; nothing to recover.
			_ = log.Sync()
			return nil
		},
	})
}

// runOnce performs one probe and writes its result, returning the exit code
func runOnce(ctx context.Context, log *zap.Logger, cfg *config.Config, cat *catalog.Catalog, runner *probe.Runner) int {
	names := cat.Names(cfg.Probe.IncludeObvious)
	log.Info("probing catalog", zap.String("catalog", cat.Name), zap.Int("modules", len(names)))

	res, err := runner.Run(ctx, names)
	if writeErr := probe.WriteResult(os.Stdout, os.Stderr, res); writeErr != nil {
		log.Error("failed to write result", zap.Error(writeErr))
		return 1
	}
	if err != nil {
		log.Error("probe failed", zap.Error(err))
		return 1
	}
	return 0
}
