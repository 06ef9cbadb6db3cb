package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/redkeeper/pkg/events"
	"github.com/cuemby/redkeeper/pkg/log"
	"github.com/cuemby/redkeeper/pkg/metrics"
)

var statusInterval time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the operator daemon",
	Long: `Run the operator daemon for one unit.

The daemon consumes lifecycle events, reconciles the unit on each one, and
serves Prometheus metrics plus health endpoints. A periodic status event
keeps the unit converged even when no lifecycle events arrive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		metrics.SetVersion(Version)
		logger := log.WithUnit(a.cfg.AppName, a.cfg.UnitOrdinal)
		logger.Info().Str("version", Version).Str("address", a.cfg.UnitAddress).
			Msg("Starting operator daemon")

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()
		sub := broker.Subscribe()

		// Metrics and health endpoints.
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", metrics.HealthHandler())
		mux.HandleFunc("/ready", metrics.ReadyHandler())
		mux.HandleFunc("/alive", metrics.LivenessHandler())
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// A restarted daemon reconciles immediately, then on every event.
		broker.Publish(events.New(events.KindConfigChanged))

		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		for {
			select {
			case ev := <-sub:
				a.engine.Reconcile(ctx, ev)
			case <-ticker.C:
				broker.Publish(events.New(events.KindUpdateStatus))
			case sig := <-sigCh:
				logger.Info().Str("signal", sig.String()).Msg("Shutting down")
				cancel()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		}
	},
}

func init() {
	runCmd.Flags().DurationVar(&statusInterval, "status-interval", 5*time.Minute,
		"Interval between periodic status reconciliations")
}
