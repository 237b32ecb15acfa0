// Command rabit streams StudyPortals program listings as server-sent
// events.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/edmondie/rabit/pkg/browser"
	"github.com/edmondie/rabit/pkg/logging"
	"github.com/edmondie/rabit/pkg/pagination"
	"github.com/edmondie/rabit/pkg/session"
	"github.com/edmondie/rabit/pkg/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const serviceName = "rabit"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running rabit without a subcommand
// starts the server.
func newRootCmd() *cobra.Command {
	cfg := configFromEnv()

	root := &cobra.Command{
		Use:   "rabit",
		Short: "Stream StudyPortals program listings",
		Long: `rabit scrapes the master, bachelor and PhD StudyPortals search pages
with a headless browser and streams every program it finds as server-sent events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.Port, "port", cfg.Port, "listen port")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "human readable console logs")
	flags.StringVar(&cfg.ChromeURL, "chrome-url", cfg.ChromeURL, "DevTools endpoint of a running Chrome (empty launches one)")
	flags.DurationVar(&cfg.PageTimeout, "page-timeout", cfg.PageTimeout, "deadline per page, 0 disables it")

	root.AddCommand(newServeCmd(&cfg), newScrapeCmd(&cfg))
	return root
}

// runtime holds the long-lived dependencies of a command.
type runtime struct {
	driver  *pagination.Driver
	closers []func(context.Context) error
}

// Close releases every dependency in reverse order.
func (r *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("Shutdown step failed")
		}
	}
}

// setupRuntime configures logging and tracing, then starts the browser.
func setupRuntime(ctx context.Context, cfg Config, logOutput io.Writer) (*runtime, error) {
	rt := &runtime{}

	logCfg := logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: logOutput,
	}
	if cfg.LogRedisURL != "" {
		sink, err := logging.NewRedisSink(ctx, cfg.LogRedisURL, cfg.LogRedisStream)
		if err != nil {
			return nil, fmt.Errorf("connect log sink: %w", err)
		}
		async := sink.Async(logging.DefaultBufferSize)
		logCfg.Sinks = append(logCfg.Sinks, async)
		rt.closers = append(rt.closers, func(context.Context) error { return async.Close() })
	}
	logging.Setup(logCfg)

	tel, err := telemetry.Setup(ctx, serviceName, telemetry.Config{Endpoint: cfg.OTLPEndpoint})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	rt.closers = append(rt.closers, tel.Shutdown)

	b, err := browser.New(ctx, browser.Config{RemoteURL: cfg.ChromeURL})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, func(context.Context) error { return b.Close() })

	driverCfg := pagination.DefaultConfig()
	driverCfg.PageTimeout = cfg.PageTimeout
	rt.driver = pagination.NewDriver(session.NewManager(b), driverCfg)

	return rt, nil
}
