package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/lco77/netops-portal/docs" // swagger docs
	"github.com/lco77/netops-portal/internal/metrics"
)

func SetupRoutes(router *gin.Engine, h *Handlers) {
	// Every request sees its session refreshed (or cleared when expired) first.
	router.Use(h.SessionMiddleware())

	// --- Public Routes ---
	router.GET("/login", h.LoginPageHandler)
	router.POST("/login", h.LoginHandler)
	router.GET("/healthz", h.HealthHandler)
	router.GET("/readyz", h.ReadinessHandler)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Swagger documentation route
	// Access it at /swagger/index.html
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	// --- Page Routes (redirect to /login when not authenticated) ---
	pages := router.Group("/")
	pages.Use(RequireAuth(PageMode))
	{
		pages.GET("", h.HomeHandler)
		pages.GET("logout", h.LogoutHandler)
	}

	// --- Authenticated API Routes ---
	apiGroup := router.Group("/api")
	apiGroup.Use(RequireAuth(APIMode))
	{
		apiGroup.GET("/me", h.MeHandler)
		apiGroup.POST("/resolve", h.ResolveHandler)

		// Role checks for sh_int_desc happen on submission, since the type is in the body.
		apiGroup.POST("/task", h.CreateTaskHandler)
		apiGroup.GET("/task/:id", h.TaskStatusHandler)

		devices := apiGroup.Group("/devices")
		devices.Use(RequireRoles(h.deps.DeviceRoles...))
		{
			devices.GET("/lookup", h.DeviceLookupHandler)
		}
	}
}
