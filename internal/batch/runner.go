package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"texture-compressor-go/internal/compressor"
	"texture-compressor-go/internal/config"
	"texture-compressor-go/internal/logger"
	"texture-compressor-go/internal/statistics"
	"texture-compressor-go/internal/texture"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrValidationFailed is wrapped by *ValidationError.
var ErrValidationFailed = errors.New("texture validation failed")

// ValidationError lists every texture that failed the validation gate.
type ValidationError struct {
	Failures []texture.ValidationResult
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %d texture(s) have invalid dimensions", ErrValidationFailed, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  ✗ %s: %s", filepath.Base(f.Path), f.Message)
	}
	b.WriteString("\nblock compression requires dimensions to be multiples of 4; resize these images or pass --ignore-validation")
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// ResultHookFunc receives every job result as it completes.
type ResultHookFunc func(compressor.Result)

// StartHookFunc receives the run id and the live summary before discovery.
type StartHookFunc func(runID string, summary *statistics.Summary)

// Report is everything a batch run produced.
type Report struct {
	RunID      string
	Files      []string
	Validation []texture.ValidationResult
	Jobs       []texture.Job
	Summary    *statistics.Summary
	DryRun     bool
}

// Runner executes one compression batch.
type Runner struct {
	config    *config.Config
	logger    *logrus.Logger
	validator *texture.Validator
	encoder   compressor.Encoder
	hook      ResultHookFunc
	startHook StartHookFunc
}

// NewRunner returns a Runner.
func NewRunner(cfg *config.Config, log *logrus.Logger, validator *texture.Validator, encoder compressor.Encoder) *Runner {
	return NewRunnerWithHook(cfg, log, validator, encoder, nil)
}

// NewRunnerWithHook returns a Runner that forwards each job result to hook.
func NewRunnerWithHook(
	cfg *config.Config,
	log *logrus.Logger,
	validator *texture.Validator,
	encoder compressor.Encoder,
	hook ResultHookFunc,
) *Runner {
	return &Runner{
		config:    cfg,
		logger:    log,
		validator: validator,
		encoder:   encoder,
		hook:      hook,
	}
}

// SetStartHook registers fn to be called once per Run, before any file is
// discovered. The summary it receives is updated as jobs finish.
func (r *Runner) SetStartHook(fn StartHookFunc) {
	r.startHook = fn
}

// Run discovers, validates and compresses. Individual job failures are
// reported in the summary and never returned as an error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	log := logger.WithRun(r.logger, runID, "compress")

	formats, err := r.config.SelectedFormats()
	if err != nil {
		return nil, err
	}
	layout := texture.Layout{
		InputRoot:  r.config.InputDirectory,
		OutputRoot: r.config.OutputDirectory,
		Formats:    formats,
	}

	summary := statistics.NewSummary(runID, r.config.OutputDirectory)
	summary.InPlace = layout.InPlace()
	report := &Report{RunID: runID, Summary: summary, DryRun: r.config.Security.DryRun}
	if r.startHook != nil {
		r.startHook(runID, summary)
	}

	log.Infof("Scanning %s for texture files", r.config.InputDirectory)
	files, err := texture.Discover(r.config.InputDirectory, texture.DiscoverOptions{
		Extensions: r.config.SupportedExtensions,
		Exclude:    r.config.Exclude,
		Logger:     r.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover textures: %w", err)
	}
	if len(files) == 0 {
		log.Info("No texture files found")
		summary.Finalize()
		return report, nil
	}
	log.Infof("Found %d texture file(s)", len(files))

	if limit := r.config.Security.MaxFilesPerRun; limit > 0 && len(files) > limit {
		log.Infof("Reached maximum files limit (%d), ignoring %d file(s)", limit, len(files)-limit)
		files = files[:limit]
	}

	accepted, results, err := r.validate(ctx, files, summary)
	report.Validation = results
	if err != nil {
		return report, err
	}
	report.Files = accepted

	jobs, err := texture.BuildJobs(accepted, layout)
	if err != nil {
		return report, fmt.Errorf("failed to build jobs: %w", err)
	}
	report.Jobs = jobs
	summary.SetJobsTotal(len(jobs))
	log.Infof("Generating %d format(s) per texture, %d job(s) total", len(formats), len(jobs))

	if r.config.Security.DryRun {
		log.Info("Running in dry-run mode - no files will be written")
		for _, job := range jobs {
			log.Infof("DRY-RUN: Would compress %s -> %s (%s)", job.InputPath, job.OutputPath, job.Format.Name)
		}
		summary.Finalize()
		return report, nil
	}

	pool := compressor.NewPool(r.encoder, r.config.Performance.WorkerThreads, r.config.Compressor.Timeout, r.logger)
	log.Infof("Using %d parallel worker(s) with %s", pool.Workers(), r.encoder.Name())

	for res := range pool.Run(ctx, jobs) {
		if res.Success {
			summary.RecordSuccess(res.OutputSize)
		} else {
			summary.RecordFailure(res.Job.InputPath, res.Job.Format.Name, res.Message, res.TimedOut)
		}
		if r.hook != nil {
			r.hook(res)
		}
	}

	summary.Finalize()
	counts := summary.Snapshot()
	log.WithFields(logrus.Fields{
		"success": counts.Success,
		"failed":  counts.Failure,
	}).Info("Compression batch completed")
	return report, nil
}

// Validate discovers textures and checks them without building any jobs.
// Invalid files yield a *ValidationError alongside the full result list.
func (r *Runner) Validate(ctx context.Context) ([]texture.ValidationResult, error) {
	files, err := texture.Discover(r.config.InputDirectory, texture.DiscoverOptions{
		Extensions: r.config.SupportedExtensions,
		Exclude:    r.config.Exclude,
		Logger:     r.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover textures: %w", err)
	}

	results, err := r.validator.ValidateAll(ctx, files, r.config.Performance.WorkerThreads)
	if err != nil {
		return nil, err
	}

	var invalid []texture.ValidationResult
	for _, res := range results {
		if !res.Valid {
			invalid = append(invalid, res)
		}
	}
	if len(invalid) > 0 {
		return results, &ValidationError{Failures: invalid}
	}
	return results, nil
}

// validate runs the validation gate and returns the files that go on to
// compression.
func (r *Runner) validate(ctx context.Context, files []string, summary *statistics.Summary) ([]string, []texture.ValidationResult, error) {
	log := logger.WithOperation(r.logger, "validate")
	log.Info("Validating texture dimensions")

	results, err := r.validator.ValidateAll(ctx, files, r.config.Performance.WorkerThreads)
	if err != nil {
		return nil, nil, err
	}
	if stats, ok := r.validator.OrientationCacheStats(); ok && stats.TotalQueries > 0 {
		log.Debugf("EXIF orientation cache: %d queries, %d hits (%.0f%%)",
			stats.TotalQueries, stats.Hits, stats.HitRate*100)
	}

	var (
		accepted   []string
		invalid    []texture.ValidationResult
		advisories int
		skipped    int
	)
	for _, res := range results {
		switch {
		case !res.Valid:
			invalid = append(invalid, res)
		case res.Advisory:
			advisories++
			logger.WithFile(r.logger, res.Path).Warnf("⚠️  %s", res.Message)
		}
	}

	if len(invalid) > 0 && !r.config.Validation.IgnoreErrors {
		summary.RecordValidation(len(files), len(results), advisories, len(invalid), 0)
		return nil, results, &ValidationError{Failures: invalid}
	}

	for _, res := range results {
		if !res.Valid {
			if !res.Decoded() {
				logger.WithFile(r.logger, res.Path).Warnf("Skipping undecodable texture: %s", res.Message)
				skipped++
				continue
			}
			logger.WithFile(r.logger, res.Path).Warnf("Ignoring validation error: %s", res.Message)
		}
		accepted = append(accepted, res.Path)
	}

	summary.RecordValidation(len(files), len(results), advisories, len(invalid), skipped)
	if len(invalid) == 0 {
		log.Info("✓ All textures have valid dimensions")
	}
	return accepted, results, nil
}
