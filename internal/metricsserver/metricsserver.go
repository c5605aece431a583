// Package metricsserver exposes Prometheus metrics on a dedicated
// listener, separate from each process's application gin engine,
// following the pack's convention of a bare http.ServeMux serving
// promhttp.Handler() at /metrics.
package metricsserver

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Start launches a /metrics listener on port in the background and
// returns the underlying server, or nil if port is empty (METRICS_PORT
// unset leaves metrics disabled, per spec §6). Call Shutdown to stop it.
func Start(service, port string) *http.Server {
	if port == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		log.Printf("%s: metrics listening on port %s", service, port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("%s: metrics server error: %v", service, err)
		}
	}()

	return srv
}

// Shutdown gracefully stops srv if it is non-nil.
func Shutdown(service string, srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("%s: metrics shutdown error: %v", service, err)
	}
}
