package handlers

import (
	"net/http"
	"strings"

	"github.com/AlexJ236/Impulso-Digital/middleware"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// SetupRouter registers the API, health and metrics routes. Any other GET
// is served from staticDir, with index.html at "/".
func SetupRouter(orders *OrderHandler, courses *CourseHandler, staticDir string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	api := router.Group("/api")
	{
		api.POST("/orders", orders.CreateOrder)
		api.POST("/orders/:orderID/capture", orders.CaptureOrder)
		api.POST("/crypto-payment", orders.SubmitCryptoPayment)

		api.GET("/courses", courses.ListCourses)
		api.GET("/courses/:id", courses.GetCourse)
		api.GET("/courses/:id/price", courses.GetPrice)
		api.GET("/categories", courses.ListCategories)
	}

	static := http.FileServer(http.Dir(staticDir))
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") ||
			(c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		static.ServeHTTP(c.Writer, c.Request)
	})

	return router
}
