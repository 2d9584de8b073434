package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"agentsite/admin"
	"agentsite/auth"
	"agentsite/config"
	"agentsite/logging"
	"agentsite/metrics"
	"agentsite/newsletter"
	"agentsite/site"
	"agentsite/subscribers"
)

const ServiceName = "agentsite"

type Application struct {
	server  *http.Server
	config  *config.Config
	router  *gin.Engine
	logger  *logging.ContextLogger
	metrics *metrics.Metrics
}

// Build wires every module against db. The database must already be
// migrated.
func Build(cfg *config.Config, db *gorm.DB, logger *logging.ContextLogger) *Application {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.NewDefault()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))
	router.Use(logging.RequestLogger(logger))
	if cfg.MetricsEnabled {
		router.Use(m.Middleware())
		router.GET("/metrics", m.Handler())
	}

	sessionStore := auth.NewAdminSessionStore([]byte(cfg.Session.Secret), cfg.Session.TTL, cfg.Session.SecureCookies)
	router.Use(auth.AdminSessions(sessionStore))

	subscriberStore := subscribers.NewStore(db)
	signupStore := newsletter.NewStore(db)
	gate := auth.NewGate(
		auth.AdminIdentity{Username: cfg.Admin.Username, Password: cfg.Admin.Password},
		cfg.Session.TTL,
		cfg.Session.SecureCookies,
	)

	siteModule := site.NewSiteModule(
		subscribers.NewService(subscriberStore, cfg.BcryptCost),
		signupStore,
		auth.NewTokenMaker(cfg.Session.Secret, cfg.Session.TTL),
		auth.CookieConfig{TTL: cfg.Session.TTL, Secure: cfg.Session.SecureCookies},
		logger,
		m,
	)
	siteModule.RegisterRoutes(router)

	adminModule := admin.NewAdminModule(subscriberStore, signupStore, gate, logger, m)
	adminModule.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   ServiceName,
		})
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		server:  server,
		config:  cfg,
		router:  router,
		logger:  logger,
		metrics: m,
	}
}

func (app *Application) Run() error {
	app.logger.WithField("port", app.config.Port).Info("starting server")
	if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (app *Application) Shutdown(ctx context.Context) error {
	app.logger.Info("shutting down server")
	return app.server.Shutdown(ctx)
}

func (app *Application) Router() *gin.Engine {
	return app.router
}

func (app *Application) Metrics() *metrics.Metrics {
	return app.metrics
}
