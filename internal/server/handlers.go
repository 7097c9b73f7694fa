package server

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luminascale/enhance-api/internal/models"
)

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(200, models.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   ServiceName,
	})
}

// getStats reports aggregate quota state and the in-process tally.
// Reads only; never mutates quota counters.
func (s *Server) getStats(c *gin.Context) {
	stats := s.ledger.Stats(c.Request.Context())

	c.JSON(200, gin.H{
		"redis_connected":      stats.Connected,
		"total_ips_today":      stats.IPBucketsToday,
		"total_api_keys_today": stats.KeyBucketsToday,
		"total_requests_today": stats.RequestsToday,
		"daily_limit_per_key":  s.ledger.Limit(),
		"daily_limit_per_ip":   s.ledger.Limit(),
		"free_api_key_name":    s.validator.KeyName(),
		"process": gin.H{
			"served":    s.tally.served.Load(),
			"rejected":  s.tally.rejected.Load(),
			"bytes_in":  s.tally.bytesIn.Load(),
			"bytes_out": s.tally.bytesOut.Load(),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) serviceInfo(c *gin.Context) {
	c.JSON(200, models.ServiceInfo{
		Name:    ServiceName,
		Version: Version,
		Features: []string{
			"Face restoration (v1.2/v1.3/v1.4 checkpoints)",
			"Background upsampling",
			"High-quality Lanczos upscaling (2x/4x)",
			"Adaptive input sizing for bounded processing cost",
		},
		Authentication: "Optional - X-API-Key header (shared free-tier key)",
		Endpoints: map[string]string{
			"health":  "/health",
			"enhance": "/enhance?scale=2",
			"stats":   "/stats",
		},
		FreeTier: fmt.Sprintf("%d requests/day", s.ledger.Limit()),
		Status:   "ready",
	})
}
