package router

import (
	"net/http"
	"time"

	"threadspire/internal/config"
	"threadspire/internal/handlers"
	"threadspire/internal/logger"
	"threadspire/internal/metrics"
	"threadspire/internal/middleware"
	"threadspire/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const ServiceName = "threadspire"

type Options struct {
	Config   config.Config
	Services *services.Services
	Log      *logger.Logger
	// HTMLRender serves the reader pages; nil disables them.
	HTMLRender render.HTMLRender
}

// New builds the engine with the middleware chain and every route.
func New(opts Options) *gin.Engine {
	cfg := opts.Config
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(ServiceName))
	r.Use(metrics.Middleware())
	r.Use(middleware.RequestLogger(opts.Log))

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("threadspire_session", store))
	r.Use(middleware.LoadUser(cfg.JWTSecret))

	if opts.HTMLRender != nil {
		r.HTMLRender = opts.HTMLRender
	}

	RegisterRoutes(r, opts)
	return r
}

func RegisterRoutes(r *gin.Engine, opts Options) {
	cfg := opts.Config
	svc := opts.Services

	threadHandler := handlers.NewThreadHandler(svc)
	analyticsHandler := handlers.NewAnalyticsHandler(svc)
	reactionHandler := handlers.NewReactionHandler(svc)
	bookmarkHandler := handlers.NewBookmarkHandler(svc)
	draftHandler := handlers.NewDraftHandler(svc)
	collectionHandler := handlers.NewCollectionHandler(svc)
	userHandler := handlers.NewUserHandler(svc, cfg.JWTSecret)
	adminHandler := handlers.NewAdminHandler(svc, cfg.AdminIDs)
	seoHandler := handlers.NewSEOHandler(svc, cfg.SiteURL)

	limiter := middleware.RateLimit(middleware.NewLimiterPool(cfg.RateLimit.RPS, cfg.RateLimit.Burst))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/robots.txt", seoHandler.RobotsTxt)
	r.GET("/sitemap.xml", seoHandler.SitemapXML)

	if opts.HTMLRender != nil {
		pageHandler := handlers.NewPageHandler(svc, opts.Log)
		r.GET("/", pageHandler.Home)
		r.GET("/t/:id", pageHandler.Thread)
	}

	api := r.Group("/api")

	// Public routes
	api.GET("/threads", threadHandler.List)
	api.GET("/threads/search", threadHandler.Search)
	api.GET("/threads/trending", threadHandler.Trending)
	api.GET("/threads/featured", threadHandler.Featured)
	api.GET("/threads/:id", threadHandler.Get)
	api.POST("/threads/:id/views", limiter, analyticsHandler.RecordView)
	api.GET("/threads/:id/analytics", analyticsHandler.Stats)
	api.GET("/threads/:id/analytics/views", analyticsHandler.ViewsByDay)
	api.GET("/threads/:id/lineage", threadHandler.Lineage)
	api.GET("/threads/:id/forks", threadHandler.Forks)
	api.GET("/threads/:id/related", threadHandler.Related)
	api.GET("/threads/:id/stream", threadHandler.Stream)
	api.GET("/threads/:id/interactions", analyticsHandler.Interactions)
	api.GET("/threads/:id/reactions", reactionHandler.Counts)
	api.GET("/threads/:id/reactions/users", reactionHandler.Users)
	api.GET("/threads/:id/reactions/stream", reactionHandler.Stream)
	api.POST("/preview", limiter, draftHandler.Preview)
	api.GET("/collections/:id", collectionHandler.Get)
	api.GET("/users/:id/collections", collectionHandler.ListForUser)
	api.GET("/users/:id/profile", userHandler.Profile)
	api.POST("/session", limiter, userHandler.Login)
	api.DELETE("/session", userHandler.Logout)

	// Protected routes
	authorized := api.Group("/")
	authorized.Use(middleware.AuthRequired(), limiter)
	{
		authorized.POST("/session/token", userHandler.Token)
		authorized.PUT("/profile", userHandler.UpdateProfile)

		authorized.POST("/threads", threadHandler.Create)
		authorized.PATCH("/threads/:id", threadHandler.Update)
		authorized.DELETE("/threads/:id", threadHandler.Delete)
		authorized.POST("/threads/:id/fork", threadHandler.Fork)

		authorized.POST("/threads/:id/reactions", reactionHandler.Add)
		authorized.DELETE("/threads/:id/reactions", reactionHandler.Remove)
		authorized.GET("/threads/:id/reactions/mine", reactionHandler.Mine)

		authorized.POST("/threads/:id/bookmark", bookmarkHandler.Toggle)
		authorized.GET("/bookmarks", bookmarkHandler.List)

		authorized.GET("/drafts", draftHandler.List)
		authorized.POST("/drafts", draftHandler.Create)
		authorized.GET("/drafts/:id", draftHandler.Get)
		authorized.PUT("/drafts/:id", draftHandler.Update)
		authorized.DELETE("/drafts/:id", draftHandler.Delete)
		authorized.POST("/drafts/:id/publish", draftHandler.Publish)
		authorized.POST("/preview/draft", draftHandler.SavePreview)

		authorized.POST("/collections", collectionHandler.Create)
		authorized.GET("/collections/stream", collectionHandler.Stream)
		authorized.PATCH("/collections/:id", collectionHandler.Update)
		authorized.DELETE("/collections/:id", collectionHandler.Delete)
		authorized.POST("/collections/:id/threads", collectionHandler.AddThread)
		authorized.GET("/collections/:id/threads/:threadId", collectionHandler.Contains)
		authorized.DELETE("/collections/:id/threads/:threadId", collectionHandler.RemoveThread)

		authorized.POST("/admin/reindex", adminHandler.Reindex)
		authorized.POST("/admin/rankings", adminHandler.RecomputeRankings)
	}
}
