package compressor

import (
	"context"
	"time"

	"texture-compressor-go/internal/texture"
)

// DefaultTimeout bounds a single encoder invocation.
const DefaultTimeout = 60 * time.Second

// Encoder compresses a single texture job.
type Encoder interface {
	// Name identifies the encoder in logs.
	Name() string
	// Encode writes job.OutputPath. It must honour ctx cancellation.
	Encode(ctx context.Context, job texture.Job) error
}

// Result describes the outcome of one job.
type Result struct {
	Job        texture.Job
	Success    bool
	TimedOut   bool
	Message    string
	OutputSize int64
	StartedAt  time.Time
	FinishedAt time.Time
	Error      error
}

// Duration returns how long the job ran.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
