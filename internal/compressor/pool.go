package compressor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"texture-compressor-go/internal/texture"

	"github.com/sirupsen/logrus"
)

// DefaultWorkers leaves one CPU for the controlling process.
func DefaultWorkers() int {
	return max(runtime.GOMAXPROCS(0)-1, 1)
}

// Pool runs jobs on a fixed number of workers.
type Pool struct {
	encoder Encoder
	workers int
	timeout time.Duration
	logger  *logrus.Logger
}

// NewPool returns a Pool. Non-positive workers or timeout fall back to the
// defaults.
func NewPool(encoder Encoder, workers int, timeout time.Duration, logger *logrus.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pool{
		encoder: encoder,
		workers: workers,
		timeout: timeout,
		logger:  logger,
	}
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// Run starts the workers and returns a channel that yields one Result per
// job in completion order. The channel is closed once every job reported.
func (p *Pool) Run(ctx context.Context, jobs []texture.Job) <-chan Result {
	jobChan := make(chan texture.Job, len(jobs))
	results := make(chan Result, p.workers)

	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)

	var wg sync.WaitGroup
	wg.Add(p.workers)
	for w := 0; w < p.workers; w++ {
		go func() {
			defer wg.Done()
			for job := range jobChan {
				results <- p.runJob(ctx, job)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// runJob executes one job under the per-job timeout. A job that fails after
// the encoder started never leaves a partial output behind; jobs that never
// reached the encoder leave existing files alone.
func (p *Pool) runJob(ctx context.Context, job texture.Job) Result {
	res := Result{Job: job, StartedAt: time.Now()}
	log := p.logger.WithFields(logrus.Fields{
		"file":   job.InputPath,
		"format": job.Format.Name,
	})

	// encoded is set once the encoder ran; only then can a file at
	// OutputPath be a partial write from this job.
	encoded := false
	fail := func(err error, msg string) Result {
		res.Error = err
		res.Message = fmt.Sprintf("%s: %s", filepath.Base(job.InputPath), msg)
		res.FinishedAt = time.Now()
		if encoded {
			if rmErr := os.Remove(job.OutputPath); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Warnf("Could not remove partial output %s: %v", job.OutputPath, rmErr)
			}
		}
		log.Errorf("Compression failed: %s", res.Message)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err, "cancelled before start")
	}

	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0755); err != nil {
		return fail(err, fmt.Sprintf("mkdir error: %v", err))
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	encoded = true
	if err := p.encoder.Encode(jobCtx, job); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			res.TimedOut = true
			return fail(err, fmt.Sprintf("timeout after %s", p.timeout))
		}
		return fail(err, err.Error())
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil {
		return fail(err, "encoder reported success but wrote no output")
	}

	res.Success = true
	res.OutputSize = info.Size()
	res.Message = fmt.Sprintf("%s -> %s", filepath.Base(job.InputPath), filepath.Base(job.OutputPath))
	res.FinishedAt = time.Now()
	log.Debugf("Compressed in %s", res.Duration())
	return res
}
