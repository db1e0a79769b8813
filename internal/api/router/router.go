package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/jobflow/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", handler.Health(deps))

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes; everything under /jobs requires an authenticated caller
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		jobs.Use(AuthMiddleware(deps.Auth))
		{
			// POST /api/v1/jobs - Submit a new job
			jobs.POST("", jobHandler.SubmitJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job status/result
			jobs.GET("/:job_id", jobHandler.GetJob)
		}
	}

	return r
}
