package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/printhub/printhub-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "up"
		if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "down"
		}

		rabbitStatus := "up"
		if !deps.RabbitClient.IsConnected() {
			status = http.StatusServiceUnavailable
			rabbitStatus = "down"
		}

		c.JSON(status, gin.H{
			"service":  "print-api-service",
			"database": dbStatus,
			"rabbitmq": rabbitStatus,
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Upload a new print job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/offer-response - Vendor accepts or declines
			jobs.POST("/:job_id/offer-response", jobHandler.RespondToOffer)

			// POST /api/v1/jobs/:job_id/cancel - Customer cancels a job
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)

			// POST /api/v1/jobs/:job_id/start-printing - Vendor starts printing
			jobs.POST("/:job_id/start-printing", jobHandler.StartPrinting)

			// POST /api/v1/jobs/:job_id/ready - Vendor marks prints ready
			jobs.POST("/:job_id/ready", jobHandler.MarkReady)

			// POST /api/v1/jobs/:job_id/pickup - Customer confirms pickup
			jobs.POST("/:job_id/pickup", jobHandler.ConfirmPickup)
		}

		// GET /api/v1/track/:code - Customer-facing status lookup
		v1.GET("/track/:code", jobHandler.TrackJob)
	}

	return r
}
