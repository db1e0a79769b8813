// Package executor is the boundary to the component that performs the actual
// unit of work. The worker loop treats it as opaque: it imposes no timeout of
// its own and lets the execution take as long as the executor decides.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Executor performs the unit of work described by a job payload.
type Executor interface {
	Execute(ctx context.Context, jobID string, payload json.RawMessage) (json.RawMessage, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, jobID string, payload json.RawMessage) (json.RawMessage, error)

func (f Func) Execute(ctx context.Context, jobID string, payload json.RawMessage) (json.RawMessage, error) {
	return f(ctx, jobID, payload)
}

// Simulated is the stand-in executor: it waits a fixed delay and produces a
// canned result naming the job.
type Simulated struct {
	Delay time.Duration
}

func (s *Simulated) Execute(ctx context.Context, jobID string, _ json.RawMessage) (json.RawMessage, error) {
	select {
	case <-time.After(s.Delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	result, err := json.Marshal(map[string]string{
		"output": fmt.Sprintf("Result for job %s", jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return result, nil
}
