package api

import (
	"net/http"
	"strings"
	"time"

	"invoice-backend/internal/auth/delivery"
	authUsecase "invoice-backend/internal/auth/usecase"
	"invoice-backend/pkg/config"
	"invoice-backend/pkg/middleware"
	"invoice-backend/pkg/web"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, h Handlers, cfg *config.Config) {
	r.SetHTMLTemplate(web.MustTemplates())

	csrf := middleware.DefaultCSRFConfig()
	csrf.Secure = cfg.SecureCookie
	// bearer-token API calls; a session cookie still needs the token
	csrf.Skipper = func(c *gin.Context) bool {
		return strings.HasPrefix(c.GetHeader("Authorization"), "Bearer ") && !delivery.HasSessionCookie(c)
	}
	r.Use(middleware.RequestLogger(), middleware.CSRFProtection(csrf))

	// Health check and metrics (no auth required)
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	loginLimiter := middleware.RateLimiter(10, time.Minute)

	// Auth pages
	r.GET("/", h.Auth.Index)
	r.GET("/login", h.Auth.LoginPage)
	r.POST("/login", loginLimiter, h.Auth.Login)
	r.GET("/logout", h.Auth.Logout)
	r.GET("/register", h.Auth.RegisterPage)
	r.POST("/register", loginLimiter, h.Auth.Register)

	protected := r.Group("/")
	protected.Use(delivery.AuthMiddleware(authUsecase))
	{
		protected.GET("/dashboard", h.Invoice.Dashboard)

		protected.GET("/accounts", h.Account.List)
		protected.POST("/accounts", h.Account.Create)
		protected.POST("/accounts/:id/delete", h.Account.Delete)

		protected.GET("/import", h.Invoice.ImportPage)
		protected.POST("/import", h.Invoice.StartImport)
		protected.GET("/import/processing/:job", h.Invoice.Processing)

		protected.GET("/history", h.Invoice.History)
		protected.GET("/downloads/:filename", h.Invoice.DownloadFile)

		invoices := protected.Group("/invoices")
		{
			invoices.GET("", h.Invoice.List)
			invoices.GET("/results/:history", h.Invoice.Results)
			invoices.POST("/batch/download", h.Invoice.BatchDownload)
			invoices.POST("/batch/delete", h.Invoice.BatchDelete)
			invoices.GET("/:id", h.Invoice.Detail)
			invoices.GET("/:id/edit", h.Invoice.EditPage)
			invoices.POST("/:id/edit", h.Invoice.Edit)
			invoices.GET("/:id/download", h.Invoice.Download)
			invoices.POST("/:id/delete", h.Invoice.Delete)
		}
	}

	api := r.Group("/api")
	api.Use(delivery.AuthMiddleware(authUsecase))
	{
		api.GET("/invoices", h.Invoice.ListJSON)
		api.GET("/invoices/sellers", h.Invoice.SellerSuggestions)
		api.POST("/import", h.Invoice.StartImport)
		api.GET("/import/status", h.Progress.Latest)
		api.GET("/import/status/:job", h.Progress.Status)
		api.GET("/accounts", h.Account.List)

		// Runtime LLM configuration, ADMIN_USERS only
		settings := api.Group("/settings")
		settings.Use(delivery.AdminOnly(cfg.AdminUsers))
		{
			settings.GET("/llm", GetLLMSettings)
			settings.PUT("/llm", UpdateLLMSettings)
			settings.POST("/llm/test", PingOllama)
		}
	}
}
