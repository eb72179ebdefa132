package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reward360/pointsguard/internal/health"
	"github.com/reward360/pointsguard/internal/metrics"
	"github.com/reward360/pointsguard/internal/transactions"
)

func (s *Server) installRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/health/live", s.handleLiveness)
	s.engine.GET("/health/ready", s.handleReadiness)
	s.engine.GET("/metrics", metrics.Handler())

	s.engine.GET("/api", s.handleInfo)

	s.engine.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})
	s.engine.GET("/ws/stats", s.handleFeedStats)

	v1 := s.engine.Group("/v1")
	transactions.NewHandler(s.service).RegisterRoutes(v1)
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// handleHealth runs every registered check. Any failure degrades the
// overall status to 503 but the per-check breakdown is always returned.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		checks[st.Name] = "healthy"
		if !st.Healthy {
			checks[st.Name] = "unhealthy"
		}
	}

	code := http.StatusOK
	overall := "healthy"
	if !healthy {
		code = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(code, HealthResponse{
		Status:    overall,
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLiveness(c *gin.Context) {
	if !s.alive.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) handleReadiness(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "PointsGuard",
		"description": "Fraud risk scoring for loyalty points transactions",
		"version":     version,
	})
}

func (s *Server) handleFeedStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.hub.Stats())
}

// storeCheck proves the transaction store answers queries.
func (s *Server) storeCheck(ctx context.Context) health.Status {
	if _, err := s.store.ListTopN(ctx, 1); err != nil {
		return health.Status{Name: "store", Healthy: false, Detail: err.Error()}
	}
	return health.Status{Name: "store", Healthy: true}
}

// databaseCheck pings the pool. Registered only when Postgres is in use.
func (s *Server) databaseCheck(ctx context.Context) health.Status {
	if err := s.db.PingContext(ctx); err != nil {
		return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
	}
	return health.Status{Name: "database", Healthy: true}
}
