package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"wafiPortal/internal/api/middleware"
	"wafiPortal/internal/backend"
	"wafiPortal/internal/config"
	"wafiPortal/internal/session"
)

// Deps are the collaborators the portal routes are built from.
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Redis    *redis.Client
	Signer   *session.CookieSigner
	Forms    FormService
	Receipts ReceiptStore
	Objects  Presigner
	Backend  *backend.Client
}

const loginRateLimit = 10

// RegisterRoutes mounts the public form, the receipt endpoints and the admin
// pages.
func RegisterRoutes(router *gin.Engine, deps Deps) {
	cfg := deps.Config
	p := mustLoadPages()

	formHandler := NewFormHandler(deps.Forms, p, cfg.Portal.UploadMaxBytes)
	receiptHandler := NewReceiptHandler(deps.Receipts, deps.Objects, p, cfg.Portal.ReceiptLinkTTL)
	wsHandler := NewWsHandler(deps.Receipts, deps.Redis, nil)
	adminHandler := NewAdminHandler(deps.Backend, deps.Redis, p, cfg.Session.TTL, cfg.Portal.CacheTTL, deps.Logger)

	sessions := middleware.SessionMiddleware(deps.Signer, cfg.Session.CookieName, cfg.Session.CookieSecure)
	formLimit := rateLimit(p, deps.Redis, "form", cfg.Portal.RateLimit, cfg.Portal.RateWindow)
	loginLimit := rateLimit(p, deps.Redis, "login", loginRateLimit, 15*time.Minute)

	router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/form") })

	form := router.Group("/form", sessions)
	{
		form.GET("", formHandler.Show)
		form.POST("", formLimit, formHandler.Post)
		form.GET("/confirmation/:ref", receiptHandler.Confirmation)
		form.GET("/receipt/:ref", receiptHandler.Download)
	}

	router.GET("/ws/receipts/:ref", sessions, wsHandler.HandleConnection)

	admin := router.Group("/admin", sessions)
	{
		admin.GET("", func(c *gin.Context) { c.Redirect(http.StatusFound, "/admin/login") })
		admin.GET("/login", adminHandler.LoginForm)
		admin.POST("/login", loginLimit, adminHandler.Login)
		admin.POST("/logout", adminHandler.Logout)

		protected := admin.Group("", adminHandler.RequireAdmin())
		{
			protected.GET("/dashboard", adminHandler.Dashboard)
			protected.GET("/applications", adminHandler.List)
			protected.GET("/applications/:id", adminHandler.Detail)
			protected.POST("/applications/:id/status", adminHandler.UpdateStatus)
		}
	}
}
