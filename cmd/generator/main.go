package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rng-mesh/internal/auditbus"
	"rng-mesh/internal/config"
	"rng-mesh/internal/generator"
	"rng-mesh/internal/generator/mixerclient"
	"rng-mesh/internal/keystream"
	"rng-mesh/internal/metricsserver"
	"rng-mesh/pkg/rngauth"
)

func main() {
	cfg, err := config.LoadGenerator()
	if err != nil {
		log.Fatalf("generator: configuration error: %v", err)
	}

	key, err := rngauth.LoadKey(cfg.AuthKey)
	if err != nil {
		log.Fatalf("generator: invalid API_AUTH_KEY: %v", err)
	}

	bus, dashboard, err := buildBus(cfg)
	if err != nil {
		log.Fatalf("generator: failed to initialize audit bus: %v", err)
	}
	defer bus.Close()

	client := mixerclient.New(cfg.MixerURL, key)
	ks := keystream.New(client)

	// Retries against the mixer until seeding succeeds. Until then ks
	// stays unready and requests observe a 503; that is the contract at
	// a fresh cluster's cold start, not a startup failure.
	go func() {
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			err := ks.Initialize(ctx)
			cancel()
			if err == nil {
				log.Println("generator: keystream seeded")
				return
			}
			log.Printf("generator: not yet seeded, retrying: %v", err)
			time.Sleep(5 * time.Second)
		}
	}()

	server := generator.NewServer(ks, bus, cfg.AuditLogPath, key)
	server.RegisterDashboard(key, dashboard)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Engine(),
	}

	metricsSrv := metricsserver.Start("generator", cfg.MetricsPort)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("generator: shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("generator: shutdown error: %v", err)
		}
		metricsserver.Shutdown("generator", metricsSrv)
	}()

	log.Printf("generator starting on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("generator: failed to start server: %v", err)
	}
}

func buildBus(cfg config.Generator) (*auditbus.Bus, *auditbus.WebSocketSink, error) {
	fileSink, err := auditbus.NewFileSink(cfg.AuditLogPath)
	if err != nil {
		return nil, nil, err
	}

	var optional []auditbus.Sink

	if cfg.Kafka.Enabled {
		sink, err := auditbus.NewKafkaSink(auditbus.KafkaSinkConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			log.Printf("generator: kafka sink disabled: %v", err)
		} else {
			optional = append(optional, sink)
		}
	}

	if cfg.ClickHouse.Enabled {
		sink, err := auditbus.NewClickHouseSink(context.Background(), auditbus.ClickHouseSinkConfig{
			Host:     cfg.ClickHouse.Host,
			Port:     cfg.ClickHouse.Port,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
			Secure:   cfg.ClickHouse.Secure,
		})
		if err != nil {
			log.Printf("generator: clickhouse sink disabled: %v", err)
		} else {
			optional = append(optional, sink)
		}
	}

	if cfg.Postgres.Enabled {
		sink, err := auditbus.NewPostgresSink(context.Background(), cfg.Postgres.DSN)
		if err != nil {
			log.Printf("generator: postgres sink disabled: %v", err)
		} else {
			optional = append(optional, sink)
		}
	}

	dashboard := auditbus.NewWebSocketSink()
	optional = append(optional, dashboard)

	return auditbus.NewBus(fileSink, optional...), dashboard, nil
}
