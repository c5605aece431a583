package auditbus

import (
	"context"
	"log"
)

// Bus fans a single Event out to a mandatory file sink and any number of
// optional best-effort sinks (Kafka, ClickHouse, Postgres, WebSocket).
type Bus struct {
	file     Sink
	optional []Sink
}

// NewBus builds a Bus. file is the mandatory system-of-record sink
// backing the /api/v1/audit/logs endpoint contract (spec §4.2.7); it
// must not be nil. optional sinks are best-effort fan-out and may be
// empty.
func NewBus(file Sink, optional ...Sink) *Bus {
	return &Bus{file: file, optional: optional}
}

// Publish writes the event to the file sink synchronously (its error is
// returned, since callers may want to know the audit trail failed) and
// fans it out to every optional sink concurrently, logging but
// swallowing their errors so a slow or unavailable downstream (Kafka,
// ClickHouse, Postgres, a stalled WebSocket client) never blocks or
// fails the request path.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if err := b.file.Publish(ctx, e); err != nil {
		return err
	}

	for _, sink := range b.optional {
		sink := sink
		go func() {
			if err := sink.Publish(ctx, e); err != nil {
				log.Printf("auditbus: optional sink publish failed: %v", err)
			}
		}()
	}
	return nil
}

// Close closes the file sink and every optional sink, collecting the
// first error encountered but attempting to close all of them.
func (b *Bus) Close() error {
	var first error
	if err := b.file.Close(); err != nil {
		first = err
	}
	for _, sink := range b.optional {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
