// Package auditbus fans out structured audit events to a mandatory
// append-only file sink plus optional Kafka, ClickHouse, Postgres, and
// WebSocket sinks, so the RNG mesh's control-plane events (entropy
// absorbed, seed issued or refused, draws served, stream started) have
// one authoritative record (the file, per spec §4.2.7/§9) and any number
// of best-effort downstream consumers. Rekeys and authentication
// failures are not published as events.
package auditbus

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one audit record. Service identifies the emitting process
// ("mixer", "generator", "harvester"); Code is a short machine-readable
// event name; Detail carries event-specific fields.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Service   string         `json:"service"`
	Code      string         `json:"code"`
	IP        string         `json:"ip,omitempty"`
	Path      string         `json:"path,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Marshal renders the event as a single JSON line (without a trailing
// newline).
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Sink accepts published events. Implementations must not block the
// caller for long; the Bus invokes them concurrently and logs (but does
// not propagate) sink errors, except for the mandatory file sink whose
// error is returned from Publish since it is the system of record.
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}
