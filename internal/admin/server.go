// Package admin owns the node's operational HTTP surface. It observes the
// comms layer; it never participates in the wire protocol.
package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/aegis-platform/aegis/internal/comms"
	"github.com/aegis-platform/aegis/internal/observability"
)

type Server struct {
	NodeID  string
	Client  *comms.Client
	Started time.Time

	router *gin.Engine
}

func New(nodeID string, client *comms.Client, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(nodeID, log.Logger))
	r.Use(observability.RequestMetricsMiddleware(nodeID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		NodeID:  nodeID,
		Client:  client,
		Started: time.Now(),
		router:  r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"node":   s.NodeID,
			"uptime": time.Since(s.Started).String(),
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"node":   s.NodeID,
			"uptime": time.Since(s.Started).String(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/listeners", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"listeners": s.Client.Listeners(),
		})
	})
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves the admin plane until the process exits.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		out = append(out, "http://localhost:3000")
	}
	return out
}
