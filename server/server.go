// Package server exposes the query façade over HTTP for local companion
// tools: one endpoint runs wire descriptors, one issues session tokens, plus
// health and Prometheus metrics.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicdesk/localbase/auth"
	"github.com/clinicdesk/localbase/internal/debug"
	"github.com/clinicdesk/localbase/query/descriptor"
	"github.com/clinicdesk/localbase/runtime/client"
)

// DefaultAddr is the loopback address the server binds when none is
// configured. The surface is meant for same-machine tooling, not the network.
const DefaultAddr = "127.0.0.1:8765"

var (
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localbase_queries_total",
			Help: "Total number of queries executed through the façade",
		},
		[]string{"table", "operation"},
	)
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localbase_query_duration_seconds",
			Help:    "Query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table", "operation"},
	)
)

// Server is the HTTP surface over one client and its auth.
type Server struct {
	client *client.Client
	auth   *auth.Auth
	engine *gin.Engine
}

// New builds the router and wires a metrics middleware into the client, so
// every query run while the server lives is counted and timed, including
// queries issued outside HTTP.
func New(c *client.Client, a *auth.Auth) *Server {
	c.Use(metricsMiddleware())

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{client: c, auth: a, engine: engine}

	engine.POST("/rest/query", s.handleQuery)
	engine.POST("/auth/token", s.handleToken)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Handler returns the router for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until the listener fails. An empty addr binds the
// loopback default.
func (s *Server) Run(addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	debug.Info("http surface listening", "addr", addr)
	return s.engine.Run(addr)
}

func (s *Server) handleQuery(c *gin.Context) {
	var w descriptor.Wire
	if err := c.ShouldBindJSON(&w); err != nil {
		c.JSON(http.StatusBadRequest, client.Result{Error: &client.Error{Message: "invalid request body: " + err.Error()}})
		return
	}

	d, err := w.Decode()
	if err != nil {
		c.JSON(http.StatusBadRequest, client.Result{Error: &client.Error{Message: err.Error()}})
		return
	}

	res := s.client.Run(c.Request.Context(), d)
	c.JSON(http.StatusOK, res)
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	session, err := s.auth.SignInWithPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func metricsMiddleware() client.Middleware {
	return client.TimingMiddleware(func(table, operation string, d time.Duration) {
		queriesTotal.WithLabelValues(table, operation).Inc()
		queryDuration.WithLabelValues(table, operation).Observe(d.Seconds())
	})
}
