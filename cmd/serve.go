// File: cmd/serve.go
package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/uxpilot/internal/config"
	"github.com/xkilldash9x/uxpilot/internal/observability"
	"github.com/xkilldash9x/uxpilot/internal/server"
	"github.com/xkilldash9x/uxpilot/internal/service"
)

const defaultShutdownTimeout = 30 * time.Second

// shutdownTimeout bounds component teardown by the configured server
// shutdown timeout.
func shutdownTimeout(cfg config.ServerConfig) time.Duration {
	if cfg.ShutdownTimeout > 0 {
		return cfg.ShutdownTimeout
	}
	return defaultShutdownTimeout
}

func newServeCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		addr      string
		headless  bool
		remoteURL string
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API with server-sent progress events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.SetServerAddr(addr)
			}
			if cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(headless)
			}
			if cmd.Flags().Changed("remote-url") {
				cfg.SetBrowserRemoteURL(remoteURL)
			}

			components, err := factory.Create(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.Server()))
				defer cancel()
				components.Shutdown(shutdownCtx)
			}()

			var metricsHandler http.Handler
			if components.Metrics != nil {
				metricsHandler = components.Metrics.Handler()
			}
			var browserControl server.BrowserControl
			if components.Browser != nil {
				browserControl = components.Browser
			}
			handlers := server.NewHandlers(components.Runner, browserControl, components.Images, metricsHandler, logger)
			srv := server.New(cfg.Server(), handlers, logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Serve(gctx)
			})
			if components.Browser != nil {
				// The listener comes up while the browser launches. A browser
				// that is down at startup is retried on the first run.
				g.Go(func() error {
					if err := components.Browser.Start(gctx); err != nil {
						logger.Warn("Browser not ready at startup", zap.Error(err))
					}
					return nil
				})
			}
			return g.Wait()
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&headless, "headless", true, "run the launched browser headless")
	serveCmd.Flags().StringVar(&remoteURL, "remote-url", "", "attach to a running Chrome at this DevTools URL")
	return serveCmd
}
