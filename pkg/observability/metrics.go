// Package observability exposes the process's Prometheus metrics over HTTP.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var metricsServer *http.Server

// StartMetricsServer serves /metrics on addr until the context is cancelled
// or StopMetricsServer is called. Listen failures are logged, not fatal: a
// provider without metrics still works.
func StartMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 120 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logrus.WithField("addr", addr).Info("Serving metrics")

	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.WithError(err).Error("Metrics server failed")
	}
}

// StopMetricsServer shuts the metrics listener down.
func StopMetricsServer(ctx context.Context) error {
	if metricsServer == nil {
		return nil
	}

	return metricsServer.Shutdown(ctx)
}
