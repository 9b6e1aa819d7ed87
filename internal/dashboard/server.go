// Package dashboard serves the on-demand status surface: health, metric
// history, recent logs, Prometheus exposition and the live signal stream.
package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/config"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/metrics"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
)

// Server hosts the Gin dashboard.
type Server struct {
	cfg           config.DashboardConfig
	log           *logger.Log
	collector     *metrics.Collector
	hub           *Hub
	metricStore   *metricStore
	logStore      *logStore
	metricHandler metrics.MetricHandlerID
	httpServer    *http.Server
	started       time.Time
}

// NewServer constructs the dashboard. It returns nil when the dashboard is
// disabled.
func NewServer(cfg config.DashboardConfig, log *logger.Log, collector *metrics.Collector, hub *Hub) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if collector == nil {
		return nil, errors.New("dashboard requires a metrics collector")
	}
	if log == nil {
		log = logger.GetLogger()
	}
	if hub == nil {
		hub = NewHub(log)
	}

	cfg.Address = normalizeAddress(cfg.Address)
	if cfg.LogHistory <= 0 {
		cfg.LogHistory = 200
	}
	if cfg.MetricsHistory <= 0 {
		cfg.MetricsHistory = 200
	}

	metricStore := newMetricStore(cfg.MetricsHistory)
	handlerID := metrics.RegisterMetricHandler(metricStore.handle)

	logStore := newLogStore(cfg.LogHistory)
	log.AddHook(logStore)

	return &Server{
		cfg:           cfg,
		log:           log,
		collector:     collector,
		hub:           hub,
		metricStore:   metricStore,
		logStore:      logStore,
		metricHandler: handlerID,
		started:       time.Now(),
	}, nil
}

// Run serves HTTP until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context, appName string) error {
	if s == nil {
		return nil
	}
	defer s.cleanup()

	router, err := s.buildRouter(appName)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.WithComponent("dashboard").WithFields(logger.Fields{"address": s.cfg.Address}).Info("dashboard listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	metrics.UnregisterMetricHandler(s.metricHandler)
	if s.logStore != nil {
		s.logStore.close()
	}
}

// Address reports the listen address.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

// Hub returns the live signal stream.
func (s *Server) Hub() *Hub {
	if s == nil {
		return nil
	}
	return s.hub
}

func (s *Server) buildRouter(appName string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"app":         appName,
			"uptime":      time.Since(s.started).Round(time.Second).String(),
			"subscribers": s.hub.Subscribers(),
		})
	})

	router.GET("/api/metrics", func(c *gin.Context) {
		history := s.metricStore.snapshot()
		payload := make([]gin.H, 0, len(history))
		for _, m := range history {
			payload = append(payload, gin.H{
				"timestamp": m.Timestamp.Format(time.RFC3339Nano),
				"component": m.Component,
				"name":      m.Name,
				"value":     m.Value,
				"type":      m.Type,
				"fields":    m.Fields,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"snapshot": s.collector.Snapshot(),
			"metrics":  payload,
		})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		history := s.logStore.snapshot()
		payload := make([]gin.H, 0, len(history))
		for _, l := range history {
			payload = append(payload, gin.H{
				"timestamp": l.Timestamp.Format(time.RFC3339Nano),
				"level":     l.Level,
				"component": l.Component,
				"message":   l.Message,
				"fields":    l.Fields,
			})
		}
		c.JSON(http.StatusOK, gin.H{"logs": payload, "levels": logger.LevelCounts()})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.collector.Registry(), promhttp.HandlerOpts{})))

	router.GET("/ws/signals", func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})

	return router, nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
