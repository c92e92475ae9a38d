package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/conf"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/service"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
)

// HealthChecker reports backend connectivity
type HealthChecker interface {
	HealthCheck(ctx context.Context) (map[string]string, bool)
}

type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	discoveryService *service.DiscoveryService,
	health HealthChecker,
) *HTTPServer {
	if config.Server.Mode != "" {
		gin.SetMode(config.Server.Mode)
	}

	router := NewRouter(log, discoveryService, health)
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)

	return &HTTPServer{
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  config.Server.ReadTimeout,
			WriteTimeout: config.Server.WriteTimeout,
		},
		logger: log,
	}
}

// NewRouter builds the gin engine with middleware, health check and API routes
func NewRouter(log *logger.Logger, discoveryService *service.DiscoveryService, health HealthChecker) *gin.Engine {
	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log, logger.MiddlewareOptions{SkipPaths: []string{"/health"}}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		body := gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		}
		code := http.StatusOK
		if health != nil {
			deps, ok := health.HealthCheck(ctx)
			body["dependencies"] = deps
			if !ok {
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, body)
	})

	// API routes
	api := router.Group("/api/v1")
	discoveryService.RegisterRoutes(api)

	return router
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}
