package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"siav-svr/internal/report"
	"siav-svr/internal/stats"
	"siav-svr/internal/store"
	"siav-svr/internal/transport"
)

// Server expone la superficie de lectura del dashboard. Todo es de solo
// lectura salvo /generar-reporte, que es idempotente.
type Server struct {
	stats   *stats.Service
	reports *report.Generator
	mqtt    *transport.MQTTConsumer
	store   store.EventStore
	log     *slog.Logger
	started time.Time
}

func NewServer(st *stats.Service, rg *report.Generator, mq *transport.MQTTConsumer, es store.EventStore, log *slog.Logger) *Server {
	return &Server{
		stats:   st,
		reports: rg,
		mqtt:    mq,
		store:   es,
		log:     log.With("component", "api"),
		started: time.Now(),
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.Use(corsHeaders())

	r.GET("/", s.health)
	r.GET("/stats", s.quickStats)
	r.GET("/eventos/recientes", s.recentEvents(10))
	r.GET("/generar-reporte", s.generateReport)
	r.GET("/reportes", s.listReports)

	// rutas con el formato que espera el dashboard
	api := r.Group("/api")
	api.GET("/eventos", s.recentEvents(100))
	api.GET("/estadisticas", s.dashboardStats)
	api.GET("/graficos", s.hourlyChart)

	return r
}

// corsHeaders habilita el dashboard servido desde otro origen.
func corsHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	storeOK := true
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		storeOK = false
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "SIAV Backend Running",
		"version": "2.0.0",
		"mqtt": gin.H{
			"connected": s.mqtt.Connected(),
			"broker":    s.mqtt.Broker(),
			"topic":     s.mqtt.Topic(),
		},
		"store": gin.H{
			"connected": storeOK,
		},
		"uptime": time.Since(s.started).Seconds(),
	})
}

func (s *Server) quickStats(c *gin.Context) {
	snap, err := s.stats.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"totalEventos":      snap.TotalDetections,
		"totalInfracciones": snap.TotalInfractions,
		"modoFallback":      snap.Fallback,
	})
}

func (s *Server) dashboardStats(c *gin.Context) {
	snap, err := s.stats.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) recentEvents(defaultLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultLimit
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}

		events, err := s.stats.RecentEvents(c.Request.Context(), limit)
		if err != nil {
			s.degraded(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

func (s *Server) hourlyChart(c *gin.Context) {
	buckets, err := s.stats.HourlyChart(c.Request.Context())
	if err != nil {
		s.degraded(c, err)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

func (s *Server) generateReport(c *gin.Context) {
	date := c.DefaultQuery("fecha", time.Now().UTC().Format("2006-01-02"))

	rep, err := s.reports.Generate(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, store.ErrConstraint) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fecha inválida, use YYYY-MM-DD"})
			return
		}
		s.degraded(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"fecha":   date,
		"reporte": rep,
	})
}

func (s *Server) listReports(c *gin.Context) {
	limit := report.MaxReportsLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	reports, err := s.reports.Reports(c.Request.Context(), limit)
	if err != nil {
		s.degraded(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

// degraded distingue el store caído de un error genérico, para que el
// dashboard pueda mostrar estado degradado en vez de pantalla de error.
func (s *Server) degraded(c *gin.Context, err error) {
	if errors.Is(err, store.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":    "store no disponible",
			"fallback": true,
		})
		return
	}
	s.log.Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
