// Package mixer is the mixer process: it exposes the entropy pool over
// HTTP, accepting harvester digests and issuing seeds to generators
// (spec §4.1, §6).
package mixer

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rng-mesh/internal/auditbus"
	"rng-mesh/internal/mixerpool"
	"rng-mesh/pkg/rngauth"
)

// Server wraps the mixer's gin engine, entropy pool, and audit bus.
type Server struct {
	pool   *mixerpool.Pool
	bus    *auditbus.Bus
	engine *gin.Engine
}

// NewServer builds a Server and registers its routes. key authenticates
// every mutating endpoint via rngauth.Middleware.
func NewServer(pool *mixerpool.Pool, bus *auditbus.Bus, key rngauth.Key) *Server {
	s := &Server{pool: pool, bus: bus, engine: gin.Default()}

	s.engine.GET("/api/v1/health", s.handleHealth)

	authed := s.engine.Group("/api/v1")
	authed.Use(rngauth.Middleware(key, func(reason string) {
		authFailuresTotal.WithLabelValues(reason).Inc()
	}))
	authed.POST("/entropy", s.handleEntropy)
	authed.GET("/seed", s.handleSeed)

	return s
}

// Engine exposes the underlying gin engine for Run or for use with an
// external http.Server (graceful shutdown).
func (s *Server) Engine() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	ready, nSources := s.pool.Health()
	if ready {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status":    "seeding",
		"n_sources": nSources,
		"required":  mixerpool.MinSources,
	})
}

// handleEntropy absorbs a harvester digest. The request body is the raw
// 32-byte digest itself, not a JSON envelope (spec §6).
func (s *Server) handleEntropy(c *gin.Context) {
	digest, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "failed to read request body"})
		return
	}

	if err := s.pool.Absorb(digest); err != nil {
		entropyAbsorbedTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	entropyAbsorbedTotal.WithLabelValues("accepted").Inc()
	_, nSources := s.pool.Health()
	poolSources.Set(float64(nSources))

	s.publish(c, "entropy_absorbed", nil)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (s *Server) handleSeed(c *gin.Context) {
	seed, ready := s.pool.EmitSeed()
	if !ready {
		seedRequestsTotal.WithLabelValues("not_ready").Inc()
		s.publish(c, "seed_not_ready", nil)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "entropy pool not ready"})
		return
	}

	seedRequestsTotal.WithLabelValues("issued").Inc()
	s.publish(c, "seed_issued", nil)
	c.Data(http.StatusOK, "application/octet-stream", seed[:])
}

func (s *Server) publish(c *gin.Context, code string, detail map[string]any) {
	if s.bus == nil {
		return
	}
	ev := auditbus.Event{
		Timestamp: time.Now(),
		Service:   "mixer",
		Code:      code,
		IP:        c.ClientIP(),
		Path:      c.Request.URL.Path,
		Detail:    detail,
	}
	if err := s.bus.Publish(context.Background(), ev); err != nil {
		log.Printf("mixer: audit publish failed: %v", err)
	}
}
