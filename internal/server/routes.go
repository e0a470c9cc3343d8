package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"

	filesHandler "github.com/shelf-sh/shelf/internal/server/handlers/files"
	projectHandler "github.com/shelf-sh/shelf/internal/server/handlers/project"
	syncHandler "github.com/shelf-sh/shelf/internal/server/handlers/sync"
	"github.com/shelf-sh/shelf/internal/server/middlewares"
	"github.com/shelf-sh/shelf/internal/version"
)

func SetupRoutes(config *Config, svc *Services) (http.Handler, error) {
	r := gin.New()

	projectH := projectHandler.New(svc.Registry, svc.Auth)
	syncH := syncHandler.New(svc.Sync, svc.Auth)
	filesH, err := filesHandler.New(svc.Registry, svc.Blob, svc.Auth)
	if err != nil {
		return nil, err
	}

	httpLogger := slog.Default().WithGroup("http")
	r.Use(slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	}))
	r.Use(gin.Recovery())
	if config.HTTP.TLSEnabled() {
		r.Use(middlewares.HSTS())
	}
	r.Use(gzip.Gzip(gzip.BestSpeed))
	r.Use(cors.Default())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	r.GET("/files/:project/*path", filesH.Serve)
	r.HEAD("/files/:project/*path", filesH.Serve)

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.TokenAuth(svc.Auth))
	{
		v1.GET("/projects", projectH.List)
		v1.GET("/files/list", filesH.List)

		v1.GET("/sync/manifest", syncH.Manifest)
		v1.POST("/sync/plan", syncH.Plan)
		v1.PUT("/sync/blob", syncH.Upload)
		v1.POST("/sync/commit", syncH.Commit)
	}

	admin := r.Group("/api/v1")
	admin.Use(middlewares.TokenAuth(svc.Auth), middlewares.AdminAuth())
	{
		admin.POST("/projects", projectH.Create)
		admin.POST("/tokens", projectH.CreateToken)
		admin.GET("/tokens", projectH.ListTokens)
		admin.DELETE("/tokens/:id", projectH.RevokeToken)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
