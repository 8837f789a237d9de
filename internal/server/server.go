// Package server exposes the HTTP API: accounts, campaigns, and the
// manual reconciliation triggers.
package server

import (
	"context"
	"net/http"
	"time"

	accountdomain "github.com/boostlane/boostlane/internal/account/domain"
	campaigndomain "github.com/boostlane/boostlane/internal/campaign/domain"
	"github.com/boostlane/boostlane/internal/config"
	obslogger "github.com/boostlane/boostlane/internal/observability/logger"
	obsmetrics "github.com/boostlane/boostlane/internal/observability/metrics"
	reconciledomain "github.com/boostlane/boostlane/internal/reconcile/domain"
	"github.com/boostlane/boostlane/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(log, httpMetrics)
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	accountSvc   accountdomain.Service
	campaignSvc  campaigndomain.Service
	reconcileSvc reconciledomain.Service
	controller   *scheduler.Controller
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	AccountSvc   accountdomain.Service
	CampaignSvc  campaigndomain.Service
	ReconcileSvc reconciledomain.Service
	Controller   *scheduler.Controller `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		accountSvc:   p.AccountSvc,
		campaignSvc:  p.CampaignSvc,
		reconcileSvc: p.ReconcileSvc,
		controller:   p.Controller,
	}
	svc.registerRoutes()
	return svc
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	accounts := api.Group("/accounts")
	accounts.POST("", s.createAccount)
	accounts.GET("/:id", s.getAccount)
	accounts.POST("/:id/topup", s.topUpAccount)

	campaigns := api.Group("/campaigns")
	campaigns.POST("", s.createCampaign)
	campaigns.GET("", s.listCampaigns)
	campaigns.GET("/:id", s.getCampaign)
	campaigns.POST("/:id/pause", s.pauseCampaign)
	campaigns.POST("/:id/resume", s.resumeCampaign)
	campaigns.POST("/:id/archive", s.archiveCampaign)
	campaigns.POST("/:id/restore", s.restoreCampaign)
	campaigns.POST("/:id/reconcile", s.reconcileCampaign)

	api.POST("/reconcile/run", s.runReconcile)
	api.POST("/maintenance/sweep-archive", s.sweepArchive)

	sched := api.Group("/scheduler")
	sched.GET("", s.schedulerStatus)
	sched.POST("/interval", s.updateSchedulerInterval)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
