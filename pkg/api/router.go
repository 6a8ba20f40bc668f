// Package api implements mnemo's HTTP/JSON REST surface (spec §6): the
// ten query-engine operations under /v1/, OTLP span ingestion, and an
// admin dashboard API. Grounded on the teacher's cmd/tarsy/main.go gin
// wiring (gin.Default, a single router, gin.H JSON bodies) generalized
// from one health endpoint to the full route table spec §6 names.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mnemo-db/mnemo/pkg/lifecycle"
	"github.com/mnemo-db/mnemo/pkg/metrics"
	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/query"
	"github.com/mnemo-db/mnemo/pkg/storage"
)

// Server bundles the collaborators every handler needs.
type Server struct {
	Engine    *query.Engine
	Lifecycle *lifecycle.Manager
	Storage   storage.Backend
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// NewRouter builds the gin engine with every route spec §6 names
// registered. Callers own the *http.Server that wraps it (see
// cmd/mnemo), so the idle-timeout watchdog and graceful shutdown stay
// outside this package.
func (s *Server) NewRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	if s.Metrics != nil {
		router.Use(s.Metrics.GinMiddleware())
	}

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/v1")
	{
		v1.POST("/memories", s.handleRemember)
		v1.GET("/memories", s.handleRecall)
		v1.GET("/memories/:id", s.handleGetMemory)
		v1.DELETE("/memories/:id", s.handleForgetOne)
		v1.POST("/memories/:id/share", s.handleShare)
		v1.POST("/checkpoints", s.handleCheckpoint)
		v1.POST("/branches", s.handleBranch)
		v1.POST("/merge", s.handleMerge)
		v1.POST("/replay", s.handleReplay)
		v1.POST("/verify", s.handleVerify)
		v1.POST("/delegate", s.handleDelegate)
		v1.POST("/ingest/otlp", s.handleOTLPIngest)
	}

	admin := router.Group("/admin/api")
	{
		admin.GET("/stats", s.handleAdminStats)
		admin.GET("/agents", s.handleAdminAgents)
		admin.GET("/memories", s.handleAdminMemories)
		admin.GET("/events", s.handleAdminEvents)
		admin.POST("/quarantine/:id", s.handleAdminQuarantine)
		admin.POST("/unquarantine/:id", s.handleAdminUnquarantine)
		admin.GET("/health", s.handleHealth)
	}

	if s.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger().Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// writeError maps a mnemoerr.Kind to the status code spec §7 names and
// renders a JSON body; everything outside the named kinds becomes 500
// with the fixed "internal server error" message so internals never
// leak to callers (the detailed message is logged instead).
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	kind := mnemoerr.KindOf(err)
	switch kind {
	case mnemoerr.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case mnemoerr.KindPermissionDenied:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case mnemoerr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.Error("internal error serving request", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
