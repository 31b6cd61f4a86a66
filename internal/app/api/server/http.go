package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/studygenius/billing/docs"
	"github.com/studygenius/billing/internal/app/api/handlers"
	mw "github.com/studygenius/billing/internal/app/api/middleware"
	"github.com/studygenius/billing/internal/app/service/access"
	"github.com/studygenius/billing/internal/app/service/billing"
	"github.com/studygenius/billing/internal/app/service/checkout"
	"github.com/studygenius/billing/internal/app/service/statistics"
	"github.com/studygenius/billing/internal/app/service/webhook"
	"github.com/studygenius/billing/internal/platform/firebase"
	cfgpkg "github.com/studygenius/billing/pkg/config"
	metrics "github.com/studygenius/billing/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeDeps struct {
	fx.In

	Log       *zap.SugaredLogger
	Cfg       *cfgpkg.Config
	Webhook   *webhook.Service
	Checkout  *checkout.Service
	Identity  *firebase.Verifier
	Store     billing.Store
	Evaluator *access.Evaluator
	Stats     *statistics.Service
	DB        *gorm.DB
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	log := d.Log
	r.Use(mw.CORS(d.Cfg.AllowedOrigins()))
	if d.Cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{Logger: log})
		p.SetListenAddress(d.Cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", d.Cfg.MetricsAddr)
	}

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	var pinger handlers.Pinger
	if sqlDB, err := d.DB.DB(); err == nil {
		pinger = sqlDB
	}
	handlers.RegisterHealthRoutes(pub, pinger)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// The webhook authenticates by signature, the session endpoints by
	// Firebase ID token.
	api := r.Group("/api")
	api.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterBillingWebhookRoutes(api, d.Webhook, log)

	authed := api.Group("/")
	authed.Use(mw.FirebaseAuth(d.Identity, log))
	handlers.RegisterBillingSessionRoutes(authed, d.Checkout, log)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())

	billingV1 := apiV1.Group("/billing")
	billingV1.Use(mw.FirebaseAuth(d.Identity, log))
	handlers.RegisterBillingAccessRoutes(billingV1, d.Store, d.Evaluator)

	if d.Cfg.Admin.APIKey == "" {
		log.Warnw("admin api disabled: admin.api_key is empty")
		return
	}
	admin := apiV1.Group("/admin")
	admin.Use(mw.AdminAPIKey(d.Cfg.Admin.APIKey))
	handlers.RegisterAdminBillingRoutes(admin, d.Store, d.Evaluator, d.Stats)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
