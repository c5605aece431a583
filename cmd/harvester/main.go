package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rng-mesh/internal/config"
	"rng-mesh/internal/harvester"
	"rng-mesh/internal/harvester/sources"
	"rng-mesh/internal/metricsserver"
	"rng-mesh/pkg/rngauth"
)

// registry is the static name -> constructor table replacing the
// original service's importlib-based dynamic source loading.
var registry = harvester.Registry{
	"currency": func() harvester.Source { return sources.NewCurrency() },
	"weather":  func() harvester.Source { return sources.NewWeather() },
	"latency":  func() harvester.Source { return sources.NewLatency(noopPinger{}) },
	"radio":    func() harvester.Source { return sources.NewRadio(noopRecorder{}) },
}

// noopPinger and noopRecorder stand in for the out-of-scope concrete
// signal-capture collaborators (ICMP sockets, an audio stack) a real
// deployment wires in; see internal/harvester/sources for the contract.
type noopPinger struct{}

func (noopPinger) Ping(ctx context.Context, host string) (time.Duration, error) {
	return 0, context.DeadlineExceeded
}

type noopRecorder struct{}

func (noopRecorder) Record(ctx context.Context, d time.Duration) ([]byte, error) {
	return nil, context.DeadlineExceeded
}

func main() {
	cfg, err := config.LoadHarvester()
	if err != nil {
		log.Fatalf("harvester: configuration error: %v", err)
	}

	key, err := rngauth.LoadKey(cfg.AuthKey)
	if err != nil {
		log.Fatalf("harvester: invalid API_AUTH_KEY: %v", err)
	}

	enabled := harvester.Resolve(registry, cfg.Sources)
	if len(enabled) == 0 {
		log.Fatal("harvester: no valid sources enabled, check HARVESTER_SOURCES")
	}

	sup := harvester.NewSupervisor(cfg.MixerURL, key, enabled)

	metricsSrv := metricsserver.Start("harvester", cfg.MetricsPort)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("harvester: shutting down...")
		metricsserver.Shutdown("harvester", metricsSrv)
		cancel()
	}()

	log.Printf("harvester starting up with sources: %v", cfg.Sources)
	if err := sup.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("harvester: supervisor exited: %v", err)
	}
}
