package auditbus

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

// authFailureWindow and authFailureAlertThreshold bound the simple
// brute-force heuristic applied to X-RNG-Auth failures: this many
// failures from the same source IP inside the window raises a security
// alert row, mirroring the teacher's fraud-alerting pattern applied to
// the RNG service's own threat model (spec §7's authentication error
// taxonomy).
const (
	authFailureWindow        = time.Minute
	authFailureAlertThresh   = 5
)

// PostgresSink persists security alerts (not every event — only
// repeated-authentication-failure bursts) to a Postgres table for
// operator review.
type PostgresSink struct {
	db *sql.DB

	mu       sync.Mutex
	failures map[string][]time.Time
}

// NewPostgresSink opens a connection pool against dsn and ensures the
// alerts table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("auditbus: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("auditbus: ping postgres: %w", err)
	}

	sink := &PostgresSink{db: db, failures: make(map[string][]time.Time)}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rng_security_alerts (
			id SERIAL PRIMARY KEY,
			ip TEXT NOT NULL,
			service TEXT NOT NULL,
			failure_count INT NOT NULL,
			window_seconds INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("auditbus: create alerts table: %w", err)
	}
	return sink, nil
}

// Publish tracks auth_failure events per source IP and inserts an alert
// row whenever a burst crosses authFailureAlertThresh within
// authFailureWindow. All other event codes are ignored by this sink.
func (s *PostgresSink) Publish(ctx context.Context, e Event) error {
	if e.Code != "auth_failure" || e.IP == "" {
		return nil
	}

	s.mu.Lock()
	now := e.Timestamp
	cutoff := now.Add(-authFailureWindow)
	kept := s.failures[e.IP][:0]
	for _, t := range s.failures[e.IP] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.failures[e.IP] = kept
	count := len(kept)
	s.mu.Unlock()

	if count < authFailureAlertThresh {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rng_security_alerts (ip, service, failure_count, window_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.IP, e.Service, count, int(authFailureWindow.Seconds()), now)
	if err != nil {
		return fmt.Errorf("auditbus: insert security alert: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
