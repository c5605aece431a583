package auditbus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseSinkConfig configures the optional ClickHouse analytics
// sink, mirroring internal/storage's ClickHouseConfig shape.
type ClickHouseSinkConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Secure   bool
}

// ClickHouseSink inserts audit events into an append-only analytics
// table for long-term trend queries (auth failure rates, rekey
// frequency, absorb volume) that the mandatory file sink is not meant to
// serve.
type ClickHouseSink struct {
	conn clickhouse.Conn
}

// NewClickHouseSink connects to ClickHouse and ensures the audit events
// table exists.
func NewClickHouseSink(ctx context.Context, cfg ClickHouseSinkConfig) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 30,
		},
		TLS: &tls.Config{InsecureSkipVerify: cfg.Secure},
	})
	if err != nil {
		return nil, fmt.Errorf("auditbus: connect clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("auditbus: ping clickhouse: %w", err)
	}

	sink := &ClickHouseSink{conn: conn}
	if err := sink.createTable(ctx); err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *ClickHouseSink) createTable(ctx context.Context) error {
	return s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rng_audit_events (
			timestamp DateTime64(3),
			service   String,
			code      String,
			ip        String,
			path      String,
			detail    String
		) ENGINE = MergeTree()
		ORDER BY (service, timestamp)
	`)
}

// Publish inserts one row per event.
func (s *ClickHouseSink) Publish(ctx context.Context, e Event) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return fmt.Errorf("auditbus: marshal detail: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO rng_audit_events")
	if err != nil {
		return fmt.Errorf("auditbus: prepare clickhouse batch: %w", err)
	}
	if err := batch.Append(e.Timestamp, e.Service, e.Code, e.IP, e.Path, string(detail)); err != nil {
		return fmt.Errorf("auditbus: append clickhouse row: %w", err)
	}
	return batch.Send()
}

// Close closes the underlying connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
