package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/engageautomations/ghl-api-backend/internal/config"
	"github.com/engageautomations/ghl-api-backend/internal/http/handler"
	httpmiddleware "github.com/engageautomations/ghl-api-backend/internal/http/middleware"
	"github.com/engageautomations/ghl-api-backend/internal/service/proxy"
)

// NewRouter wires gin routes and middleware. Proxy routes are registered
// from the declarative endpoint table behind the installation resolver.
func NewRouter(
	cfg config.Config,
	oauthHandler *handler.OAuthHandler,
	installationHandler *handler.InstallationHandler,
	directoryHandler *handler.DirectoryHandler,
	proxyHandler *handler.ProxyHandler,
	resolver *httpmiddleware.InstallationResolver,
	rateLimiter *httpmiddleware.RateLimiter,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(httpmiddleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	oauth := r.Group("/api/oauth")
	{
		oauth.GET("/url", oauthHandler.URL)
		oauth.GET("/callback", oauthHandler.Callback)
		oauth.GET("/status", oauthHandler.Status)
	}

	installations := r.Group("/api/installations")
	{
		installations.GET("", installationHandler.List)
		installations.GET("/:id", installationHandler.Get)
		installations.DELETE("/:id", installationHandler.Delete)
	}

	directories := r.Group("/api/directories")
	{
		directories.GET("", directoryHandler.List)
		directories.POST("", directoryHandler.Create)
		directories.GET("/:id", directoryHandler.Get)
		directories.PUT("/:id", directoryHandler.Update)
		directories.DELETE("/:id", directoryHandler.Delete)
	}

	for _, ep := range proxy.Endpoints() {
		r.Handle(ep.Method, ep.LocalPath, resolver.Resolve, proxyHandler.Handle(ep))
	}

	return r
}
