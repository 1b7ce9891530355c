package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/parent-watch/internal/api"
)

var servePort int

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracker and the dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyTrackerFlags(cmd)
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initTracker(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := api.Options{
			Gatherer:       env.Registry,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}
		if env.Store != nil {
			opts.History = env.Store
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewRouter(env.Harness, opts),
			ReadHeaderTimeout: 5 * time.Second,
		}

		return serve(ctx, srv, env.Harness.Start, env.Harness.Stop)
	},
}

// serve runs the harness and the HTTP server until ctx is done, then stops
// both. A scripted feed finishing does not stop the server.
func serve(ctx context.Context, srv *http.Server, start func(context.Context) error, stopHarness func()) error {
	if err := start(ctx); err != nil {
		return err
	}
	defer stopHarness()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
	})
	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	addTrackerFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}
