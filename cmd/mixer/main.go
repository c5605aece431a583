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
	"rng-mesh/internal/metricsserver"
	"rng-mesh/internal/mixer"
	"rng-mesh/internal/mixerpool"
	"rng-mesh/pkg/rngauth"
)

func main() {
	cfg, err := config.LoadMixer()
	if err != nil {
		log.Fatalf("mixer: configuration error: %v", err)
	}

	key, err := rngauth.LoadKey(cfg.AuthKey)
	if err != nil {
		log.Fatalf("mixer: invalid API_AUTH_KEY: %v", err)
	}

	bus, err := buildBus(cfg)
	if err != nil {
		log.Fatalf("mixer: failed to initialize audit bus: %v", err)
	}
	defer bus.Close()

	pool := mixerpool.New()
	server := mixer.NewServer(pool, bus, key)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Engine(),
	}

	metricsSrv := metricsserver.Start("mixer", cfg.MetricsPort)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("mixer: shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("mixer: shutdown error: %v", err)
		}
		metricsserver.Shutdown("mixer", metricsSrv)
	}()

	log.Printf("mixer starting on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("mixer: failed to start server: %v", err)
	}
}

func buildBus(cfg config.Mixer) (*auditbus.Bus, error) {
	fileSink, err := auditbus.NewFileSink(cfg.AuditLogPath)
	if err != nil {
		return nil, err
	}

	var optional []auditbus.Sink

	if cfg.Kafka.Enabled {
		sink, err := auditbus.NewKafkaSink(auditbus.KafkaSinkConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			log.Printf("mixer: kafka sink disabled: %v", err)
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
			log.Printf("mixer: clickhouse sink disabled: %v", err)
		} else {
			optional = append(optional, sink)
		}
	}

	if cfg.Postgres.Enabled {
		sink, err := auditbus.NewPostgresSink(context.Background(), cfg.Postgres.DSN)
		if err != nil {
			log.Printf("mixer: postgres sink disabled: %v", err)
		} else {
			optional = append(optional, sink)
		}
	}

	return auditbus.NewBus(fileSink, optional...), nil
}
