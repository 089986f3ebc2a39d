// api/router.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Annany2002/nebula-insights/api/handlers"
	"github.com/Annany2002/nebula-insights/api/middleware" // Import middleware package
	"github.com/Annany2002/nebula-insights/config"
	"github.com/Annany2002/nebula-insights/internal/metrics"
	"github.com/Annany2002/nebula-insights/internal/rbac"
	"github.com/Annany2002/nebula-insights/internal/storage"
	"github.com/Annany2002/nebula-insights/internal/upload"
)

// Dependencies are the services the HTTP layer is wired to.
type Dependencies struct {
	Config    *config.Config
	Store     *storage.Store
	Resolver  *rbac.Resolver
	Templates upload.DefinitionSource
	Uploads   *upload.Service
	Reports   *upload.ReportStore
	Metrics   *metrics.Collector
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// SetupRouter initializes the Gin router and sets up all routes.
func SetupRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	router := gin.Default() // Includes Logger and Recovery

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	// It should run after basic middleware like Logger/Recovery
	// but before the routing happens, so it wraps the handlers.
	router.Use(middleware.ErrorHandler())

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(cfg, deps.Resolver)
	templateHandler := handlers.NewTemplateHandler(deps.Templates, cfg.TemplatePath)
	uploadHandler := handlers.NewUploadHandler(deps.Uploads, deps.Reports, cfg.MaxUploadBytes)
	analysisHandler := handlers.NewAnalysisHandler(deps.Store, cfg.StrictOperators, deps.Metrics)
	dataHandler := handlers.NewDataHandler(deps.Store, cfg.StrictOperators, deps.Metrics)
	roleHandler := handlers.NewRoleHandler(deps.Store)
	userHandler := handlers.NewUserHandler(deps.Store, deps.Resolver)

	perms := middleware.NewPermissions(deps.Resolver, deps.Metrics)

	// --- Public Routes ---
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	authRoutes := router.Group("/auth")
	authRoutes.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)))
	{
		authRoutes.POST("/login", authHandler.Login)
	}

	// --- Protected Routes ---
	apiRoutes := router.Group("/api/v1")
	apiRoutes.Use(middleware.AuthMiddleware(cfg, deps.Store))
	{
		apiRoutes.GET("/me", authHandler.Me)

		templateRoutes := apiRoutes.Group("/template")
		templateRoutes.GET("", perms.Require("template.read"), templateHandler.GetTemplate)
		templateRoutes.GET("/download", perms.Require("template.download"), templateHandler.DownloadTemplate)

		uploadRoutes := apiRoutes.Group("/upload", perms.Require("data.upload"))
		uploadRoutes.POST("", uploadHandler.Upload)
		uploadRoutes.GET("/reports/:name", uploadHandler.DownloadReport)

		analysisRoutes := apiRoutes.Group("/analysis")
		analysisRoutes.GET("/data", perms.Require("data.read"), analysisHandler.GetData)
		analysisRoutes.POST("/summary", perms.Require("analysis.basic"), analysisHandler.GetSummary)

		dataRoutes := apiRoutes.Group("/data")
		dataRoutes.GET("/summary", perms.Require("data.read"), dataHandler.GetSummary)
		dataRoutes.POST("/count", perms.Require("data.filter"), dataHandler.GetFilteredCount)
		dataRoutes.POST("/download", perms.Require("data.download"), dataHandler.Download)

		roleRoutes := apiRoutes.Group("/roles")
		roleRoutes.GET("", perms.Require("role.read"), roleHandler.ListRoles)
		roleRoutes.GET("/permissions/all", perms.RequireAny("role.read", "role.manage_permissions"), roleHandler.ListPermissions)
		roleRoutes.GET("/:id", perms.Require("role.read"), roleHandler.GetRole)
		roleRoutes.POST("", perms.Require("role.create"), roleHandler.CreateRole)
		roleRoutes.PUT("/:id", perms.Require("role.update"), roleHandler.UpdateRole)
		roleRoutes.DELETE("/:id", perms.Require("role.delete"), roleHandler.DeleteRole)

		userRoutes := apiRoutes.Group("/users")
		userRoutes.GET("", perms.Require("user.read"), userHandler.ListUsers)
		userRoutes.GET("/stats", perms.Require("user.read"), userHandler.GetStats)
		userRoutes.GET("/roles/available", perms.Require("user.manage_roles"), userHandler.AvailableRoles)
		userRoutes.GET("/:id", perms.Require("user.read"), userHandler.GetUser)
		userRoutes.PUT("/:id/role", perms.Require("user.manage_roles"), userHandler.UpdateUserRole)
		userRoutes.PUT("/:id/status", perms.Require("user.update"), userHandler.UpdateUserStatus)
		userRoutes.POST("/bulk/roles", perms.Require("user.manage_roles"), userHandler.BulkUpdateRoles)
	}

	return router
}
