package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tada/internal/httpapi"
	"github.com/Makepad-fr/tada/internal/metrics"
	"github.com/Makepad-fr/tada/internal/ui"
)

func (a *App) serveCmd() *cobra.Command {
	var addr, token string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API over the configured store",
		Args:  exactArgs(0, "serve [--addr host:port] [--token t]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if token != "" {
				a.cfg.Server.Token = token
			}
			if a.cfg.Remote.URL != "" {
				return usagef("serve: needs a local store, unset --remote")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from server.addr)")
	cmd.Flags().StringVar(&token, "token", "", "Require this bearer token on /api/ routes")
	return cmd
}

// serve runs the API until ctx is cancelled, then shuts down gracefully.
func (a *App) serve(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(reg)

	l, err := a.open(ctx)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler: httpapi.New(l, httpapi.Options{
			Token:    a.cfg.Server.Token,
			Logger:   a.logger,
			Metrics:  a.metrics,
			Gatherer: reg,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	a.logger.Info("Serving HTTP API",
		slog.String("addr", ln.Addr().String()),
		slog.String("store", a.cfg.Store.Driver),
		slog.Bool("auth", a.cfg.Server.Token != ""))
	ui.OK("serving on http://" + ln.Addr().String() + httpapi.Prefix)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("HTTP API stopped")
	return nil
}
