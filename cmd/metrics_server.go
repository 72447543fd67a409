package cmd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// newMetricsRouter exposes the registry on /metrics and a liveness probe on /healthz.
func newMetricsRouter(reg *prometheus.Registry) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	}).Methods(http.MethodGet)
	return r
}

// serveMetrics starts the metrics endpoint in the background.
func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMetricsRouter(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logrus.Infof("serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server: %v", err)
		}
	}()
	return srv
}

func shutdownMetrics(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Warnf("metrics server shutdown: %v", err)
	}
}
