package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/jobflow/internal/auth"
	"github.com/cuongbtq/jobflow/internal/gateway"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Gateway *gateway.Gateway
	Auth    *auth.Service
	// HealthPing reports store connectivity; nil skips the check.
	HealthPing func(ctx context.Context) error
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger  *slog.Logger
	gateway *gateway.Gateway
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		gateway: deps.Gateway,
	}
}
