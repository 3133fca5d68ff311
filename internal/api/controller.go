// Package api implements the SafeCity backend REST API: account handling,
// analysis record storage and the server-side audio feature model.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gocache "github.com/patrickmn/go-cache"

	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/datastore"
	"github.com/safecity/safecity-go/internal/logging"
	"github.com/safecity/safecity-go/internal/observability"
)

const (
	sessionName = "safecity-session"

	recordCacheTTL     = 1 * time.Minute
	recordCacheCleanup = 5 * time.Minute
)

// Controller owns the echo instance and all route handlers.
type Controller struct {
	Echo     *echo.Echo
	Settings *conf.Settings

	ds          datastore.Interface
	sessions    *sessions.CookieStore
	recordCache *gocache.Cache
	metrics     *observability.Metrics
	log         *slog.Logger
}

// New builds the API controller and registers all routes. metrics may be nil.
func New(settings *conf.Settings, ds datastore.Interface, metrics *observability.Metrics) *Controller {
	log := logging.ForService("api")
	if log == nil {
		log = slog.Default()
	}

	store := sessions.NewCookieStore([]byte(settings.Security.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   settings.Security.SessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:        e,
		Settings:    settings,
		ds:          ds,
		sessions:    store,
		recordCache: gocache.New(recordCacheTTL, recordCacheCleanup),
		metrics:     metrics,
		log:         log,
	}

	e.Use(c.metricsMiddleware)
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	api := c.Echo.Group("/api")

	api.POST("/register", c.Register)
	api.POST("/login", c.Login)
	api.POST("/logout", c.Logout)

	api.GET("/records/:userId", c.GetRecords)
	api.POST("/analyze/audio", c.AnalyzeAudio)
	api.POST("/analyze/video", c.AnalyzeVideo)
	api.POST("/analyze/text", c.AnalyzeText)

	c.Echo.GET("/healthz", c.Health)
	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// Start runs the HTTP server on the configured port, blocking until it
// stops.
func (c *Controller) Start() error {
	addr := ":" + c.Settings.WebServer.Port
	c.log.Info("starting web server", "addr", addr)
	return c.Echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the server.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.Echo.Shutdown(ctx)
}

// Health handles GET /healthz.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (c *Controller) metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		err := next(ctx)
		if c.metrics != nil {
			status := ctx.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			c.metrics.HTTPRequests.WithLabelValues(
				ctx.Request().Method, ctx.Path(), strconv.Itoa(status)).Inc()
		}
		return err
	}
}
