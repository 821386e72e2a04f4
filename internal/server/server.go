package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/inventory/internal/config"
	hostdomain "github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/smallbiznis/inventory/internal/observability"
	obsmiddleware "github.com/smallbiznis/inventory/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/inventory/internal/observability/metrics"
	obstracing "github.com/smallbiznis/inventory/internal/observability/tracing"
	"github.com/smallbiznis/inventory/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const apiPrefix = "/api/inventory/v1"

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obsCfg.ServiceName)...)
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	hostSvc       hostdomain.Service
	obsMetrics    *obsmetrics.Metrics
	ingestLimiter ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	HostSvc       hostdomain.Service
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
	IngestLimiter ratelimit.Limiter   `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		hostSvc:       p.HostSvc,
		obsMetrics:    p.ObsMetrics,
		ingestLimiter: p.IngestLimiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group(apiPrefix, IdentityRequired())

	// -------- Hosts --------
	api.GET("/hosts", s.ListHosts)
	api.POST("/hosts", s.IngestRateLimit(), s.AddHosts)
	api.GET("/hosts/:host_id_list", s.GetHostsByIDs)
	api.GET("/hosts/:host_id_list/system_profile", s.GetHostSystemProfiles)
}
