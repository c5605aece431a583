// Package generator is the generator process: it maintains the seeded
// keystream and exposes the application-facing draw, stream, and audit
// endpoints (spec §4.2, §6).
package generator

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"rng-mesh/internal/auditbus"
	"rng-mesh/internal/generator/sampling"
	"rng-mesh/internal/keystream"
	"rng-mesh/pkg/rngauth"
)

// defaultSlotDraws is the number of cells in the 5x3 slot grid.
const defaultSlotDraws = 15

// defaultSymbolDraws is the num_draws default for draw_symbols when the
// request omits it (spec §6).
const defaultSymbolDraws = 15

// Server wraps the generator's gin engine, keystream, and audit bus.
type Server struct {
	ks        *keystream.Keystream
	bus       *auditbus.Bus
	auditPath string
	engine    *gin.Engine
}

// NewServer builds a Server and registers its routes. auditPath is the
// file backing /api/v1/audit/logs; if the file does not yet exist that
// endpoint returns 404.
func NewServer(ks *keystream.Keystream, bus *auditbus.Bus, auditPath string, key rngauth.Key) *Server {
	s := &Server{ks: ks, bus: bus, auditPath: auditPath, engine: gin.Default()}

	s.engine.GET("/api/v1/health", s.handleHealth)

	authed := s.engine.Group("/api/v1")
	authed.Use(rngauth.Middleware(key, func(reason string) {
		authFailuresTotal.WithLabelValues(reason).Inc()
	}))
	authed.GET("/games/slot_5x3", s.requireReady, s.handleSlot)
	authed.POST("/rng/draw_numbers", s.requireReady, s.handleDrawNumbers)
	authed.POST("/games/draw_symbols", s.requireReady, s.handleDrawSymbols)
	authed.GET("/stream_entropy", s.requireReady, s.handleStreamEntropy)
	authed.GET("/audit/logs", s.handleAuditLogs)

	return s
}

// Engine exposes the underlying gin engine for Run or for use with an
// external http.Server (graceful shutdown).
func (s *Server) Engine() http.Handler {
	return s.engine
}

// RegisterDashboard wires an authenticated WebSocket endpoint that
// subscribes operator dashboards to sink's broadcast feed.
func (s *Server) RegisterDashboard(key rngauth.Key, sink *auditbus.WebSocketSink) {
	authed := s.engine.Group("/api/v1")
	authed.Use(rngauth.Middleware(key, func(reason string) {
		authFailuresTotal.WithLabelValues(reason).Inc()
	}))
	authed.GET("/ws/audit", func(c *gin.Context) {
		if err := sink.Handle(c.Writer, c.Request); err != nil {
			log.Printf("generator: dashboard websocket: %v", err)
		}
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	if !s.ks.Ready() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": readyStatus(s.ks.Ready())})
}

func readyStatus(ready bool) string {
	if ready {
		return "ready"
	}
	return "not_ready"
}

// requireReady answers RNG requests with 503 until the keystream has
// been seeded.
func (s *Server) requireReady(c *gin.Context) {
	if !s.ks.Ready() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "generator not ready"})
		return
	}
	c.Next()
}

func (s *Server) byteSource() sampling.ByteSource {
	return s.ks.Generate
}

func (s *Server) handleSlot(c *gin.Context) {
	numbers := make([]int64, 0, defaultSlotDraws)
	for i := 0; i < defaultSlotDraws; i++ {
		v, err := sampling.DrawUint(c.Request.Context(), 0, 9, s.byteSource())
		if err != nil {
			drawsTotal.WithLabelValues("slot_5x3", "error").Inc()
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": err.Error()})
			return
		}
		numbers = append(numbers, v)
	}

	drawsTotal.WithLabelValues("slot_5x3", "success").Inc()
	s.publish(c, "draw_slot", nil)
	c.JSON(http.StatusOK, gin.H{"game": "slot_5x3", "drawn_numbers": numbers, "status": "success"})
}

type drawNumbersRequest struct {
	Ranges [][]int64 `json:"ranges" binding:"required"`
}

func (s *Server) handleDrawNumbers(c *gin.Context) {
	var req drawNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Ranges) == 0 {
		drawsTotal.WithLabelValues("draw_numbers", "error").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid ranges"})
		return
	}

	numbers := make([]int64, 0, len(req.Ranges))
	for _, r := range req.Ranges {
		if len(r) != 2 {
			drawsTotal.WithLabelValues("draw_numbers", "error").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "each range must have exactly 2 elements"})
			return
		}
		v, err := sampling.DrawUint(c.Request.Context(), r[0], r[1], s.byteSource())
		if err != nil {
			drawsTotal.WithLabelValues("draw_numbers", "error").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}
		numbers = append(numbers, v)
	}

	drawsTotal.WithLabelValues("draw_numbers", "success").Inc()
	s.publish(c, "draw_numbers", map[string]any{"ranges": req.Ranges})
	c.JSON(http.StatusOK, gin.H{"status": "success", "drawn_numbers": numbers})
}

type symbolRequest struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

type drawSymbolsRequest struct {
	Symbols  []symbolRequest `json:"symbols" binding:"required"`
	NumDraws int             `json:"num_draws"`
}

func (s *Server) handleDrawSymbols(c *gin.Context) {
	var req drawSymbolsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Symbols) == 0 {
		drawsTotal.WithLabelValues("draw_symbols", "error").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid symbols"})
		return
	}
	numDraws := req.NumDraws
	if numDraws == 0 {
		numDraws = defaultSymbolDraws
	}

	symbols := make([]sampling.Symbol, len(req.Symbols))
	for i, sr := range req.Symbols {
		symbols[i] = sampling.Symbol{Name: sr.Name, Weight: sr.Weight}
	}

	drawn, err := sampling.DrawWeighted(c.Request.Context(), symbols, numDraws, s.byteSource())
	if err != nil {
		drawsTotal.WithLabelValues("draw_symbols", "error").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	drawsTotal.WithLabelValues("draw_symbols", "success").Inc()
	s.publish(c, "draw_symbols", map[string]any{"num_draws": numDraws})
	c.JSON(http.StatusOK, gin.H{"status": "success", "drawn_symbols": drawn})
}

// streamChunkSize is the amount of entropy fetched per iteration while
// streaming (spec §7's STREAM_CHUNK).
const streamChunkSize = 1024

// handleStreamEntropy streams raw keystream bytes until the client
// disconnects, using gin's Stream in place of the original's generator-
// based chunked response.
func (s *Server) handleStreamEntropy(c *gin.Context) {
	s.publish(c, "stream_entropy_start", nil)
	c.Header("Content-Type", "application/octet-stream")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		default:
		}
		chunk, err := s.ks.Generate(c.Request.Context(), streamChunkSize)
		if err != nil {
			log.Printf("generator: stream_entropy: %v", err)
			return false
		}
		if _, err := w.Write(chunk); err != nil {
			return false
		}
		bytesStreamedTotal.Add(float64(len(chunk)))
		return true
	})
}

func (s *Server) handleAuditLogs(c *gin.Context) {
	if _, err := os.Stat(s.auditPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "audit log not found"})
		return
	}
	c.FileAttachment(s.auditPath, "audit.log")
}

func (s *Server) publish(c *gin.Context, code string, detail map[string]any) {
	if s.bus == nil {
		return
	}
	ev := auditbus.Event{
		Timestamp: time.Now(),
		Service:   "generator",
		Code:      code,
		IP:        c.ClientIP(),
		Path:      c.Request.URL.Path,
		Detail:    detail,
	}
	if err := s.bus.Publish(context.Background(), ev); err != nil {
		log.Printf("generator: audit publish failed: %v", err)
	}
}
