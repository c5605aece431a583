// Package harvester runs the sample -> hash -> POST loop for a set of
// entropy sources (spec §4.3). Source selection is a static registry
// populated by cmd/harvester/main.go, replacing the original service's
// importlib-based dynamic module loading.
package harvester

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"rng-mesh/pkg/rngauth"
)

// Source is the harvester's capability contract: a name, a sample
// period, and a sampling operation that may return nil when the
// underlying signal is unavailable this cycle.
type Source interface {
	Name() string
	Period() time.Duration
	Sample(ctx context.Context) ([]byte, error)
}

// Registry maps a configured source name to its constructor. main.go
// populates this at startup; an unknown name in HARVESTER_SOURCES is a
// configuration error, logged and skipped rather than fatal (spec §7).
type Registry map[string]func() Source

// postTimeout bounds the harvester -> mixer entropy POST (spec §5).
const postTimeout = 10 * time.Second

// Supervisor runs one goroutine per enabled source, forwarding each
// sample's digest to the mixer.
type Supervisor struct {
	mixerURL string
	key      rngauth.Key
	http     *http.Client
	sources  []Source
}

// NewSupervisor builds a Supervisor for the given sources.
func NewSupervisor(mixerURL string, key rngauth.Key, sources []Source) *Supervisor {
	return &Supervisor{
		mixerURL: mixerURL,
		key:      key,
		http:     &http.Client{Timeout: postTimeout},
		sources:  sources,
	}
}

// Resolve builds the Source list for names against reg, logging and
// skipping any name the registry does not recognize.
func Resolve(reg Registry, names []string) []Source {
	var sources []Source
	for _, name := range names {
		ctor, ok := reg[name]
		if !ok {
			log.Printf("harvester: unknown source %q, skipping", name)
			continue
		}
		sources = append(sources, ctor())
	}
	return sources
}

// Run starts one goroutine per source via errgroup and blocks until ctx
// is cancelled or a source's goroutine returns a non-context error.
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range s.sources {
		src := src
		g.Go(func() error {
			s.runSource(ctx, src)
			return ctx.Err()
		})
	}
	return g.Wait()
}

// runSource loops sample -> timestamp -> hash -> POST -> sleep until ctx
// is done, logging (never panicking) on any per-iteration failure so one
// bad cycle never kills the source's goroutine.
func (s *Supervisor) runSource(ctx context.Context, src Source) {
	name := src.Name()
	log.Printf("harvester: starting source %s with period %s", name, src.Period())

	ticker := time.NewTicker(src.Period())
	defer ticker.Stop()

	for {
		s.sampleOnce(ctx, src)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) sampleOnce(ctx context.Context, src Source) {
	name := src.Name()
	raw, err := src.Sample(ctx)
	if err != nil {
		samplesTotal.WithLabelValues(name, "error").Inc()
		log.Printf("harvester: source %s sample error: %v", name, err)
		return
	}
	if len(raw) == 0 {
		samplesTotal.WithLabelValues(name, "empty").Inc()
		log.Printf("harvester: source %s returned no entropy this cycle", name)
		return
	}
	samplesTotal.WithLabelValues(name, "ok").Inc()

	// A high-resolution timestamp is appended so identical source output
	// never produces identical digests (spec §4.3).
	stamped := append(append([]byte{}, raw...), []byte(strconv.FormatInt(time.Now().UnixNano(), 10))...)
	digest := sha256.Sum256(stamped)

	if err := s.post(ctx, digest[:]); err != nil {
		digestsSentTotal.WithLabelValues(name, "error").Inc()
		log.Printf("harvester: source %s: failed to send digest to mixer: %v", name, err)
		return
	}
	digestsSentTotal.WithLabelValues(name, "ok").Inc()
	log.Printf("harvester: source %s sent digest to mixer", name)
}

// post sends digest as the raw request body, matching the mixer's
// POST /api/v1/entropy contract (spec §6): no JSON envelope.
func (s *Supervisor) post(ctx context.Context, digest []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.mixerURL+"/api/v1/entropy", bytes.NewReader(digest))
	if err != nil {
		return fmt.Errorf("harvester: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(rngauth.HeaderName, s.key.Sign(digest))

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("harvester: post entropy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("harvester: mixer returned status %d", resp.StatusCode)
	}
	return nil
}
