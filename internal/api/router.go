package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/presence/internal/api/handlers"
	"github.com/your-org/presence/internal/api/ws"
	"github.com/your-org/presence/internal/auth"
)

// Deps bundles everything the router needs.
type Deps struct {
	APIKey     string
	Attendance *handlers.AttendanceHandler
	Personnel  *handlers.PersonnelHandler
	System     *handlers.SystemHandler
	Hub        *ws.Hub
}

// NewRouter builds the gin engine. Health and metrics endpoints are
// unauthenticated; everything under /v1 requires the API key.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", deps.System.Healthz)
	r.GET("/readyz", deps.System.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(deps.APIKey))
	{
		att := v1.Group("/attendance")
		{
			att.POST("/capture", deps.Attendance.Capture)
			att.POST("/capture/async", deps.Attendance.EnqueueCapture)
			att.POST("/manual", deps.Attendance.Manual)
			att.GET("", deps.Attendance.List)
			att.DELETE("/:id", deps.Attendance.Delete)

			att.POST("/pending", deps.Attendance.SubmitPending)
			att.GET("/pending", deps.Attendance.ListPending)
			att.POST("/pending/:id/approve", deps.Attendance.ApprovePending)
			att.POST("/pending/:id/reject", deps.Attendance.RejectPending)
		}

		people := v1.Group("/personnel")
		{
			people.POST("", deps.Personnel.Create)
			people.GET("", deps.Personnel.List)
			people.GET("/:id", deps.Personnel.Get)
			people.POST("/:id/faces", deps.Personnel.Enroll)
			people.GET("/:id/faces", deps.Personnel.ListFaces)
		}

		v1.POST("/templates/reload", deps.Personnel.ReloadTemplates)
		v1.GET("/ws", deps.Hub.HandleWS)
	}

	return r
}
