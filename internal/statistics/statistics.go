package statistics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Summary accumulates the outcome of one compression batch.
type Summary struct {
	RunID           string
	OutputDirectory string
	InPlace         bool

	FilesFound     int64
	FilesValidated int64
	Advisories     int64
	InvalidFiles   int64
	SkippedFiles   int64

	JobsTotal    int64
	Success      int64
	Failure      int64
	TimedOut     int64
	BytesWritten int64

	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	JobsPerSecond float64

	Failures []JobFailure

	mutex sync.RWMutex
}

// JobFailure records a failed job.
type JobFailure struct {
	InputPath string
	Format    string
	Message   string
	TimedOut  bool
	Timestamp time.Time
}

// Counts is a point-in-time copy of the counters, safe to serialize.
type Counts struct {
	FilesFound   int64 `json:"files_found"`
	Advisories   int64 `json:"advisories"`
	InvalidFiles int64 `json:"invalid_files"`
	SkippedFiles int64 `json:"skipped_files"`
	JobsTotal    int64 `json:"jobs_total"`
	Success      int64 `json:"success"`
	Failure      int64 `json:"failure"`
	TimedOut     int64 `json:"timed_out"`
	BytesWritten int64 `json:"bytes_written"`
}

// NewSummary returns an empty Summary for a run writing to outputDir.
func NewSummary(runID, outputDir string) *Summary {
	return &Summary{
		RunID:           runID,
		OutputDirectory: outputDir,
		StartTime:       time.Now(),
		Failures:        make([]JobFailure, 0),
	}
}

// RecordValidation folds the validation stage counts in.
func (s *Summary) RecordValidation(found, validated, advisories, invalid, skipped int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.FilesFound = int64(found)
	s.FilesValidated = int64(validated)
	s.Advisories = int64(advisories)
	s.InvalidFiles = int64(invalid)
	s.SkippedFiles = int64(skipped)
}

// SetJobsTotal records how many jobs were built.
func (s *Summary) SetJobsTotal(n int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.JobsTotal = int64(n)
}

// RecordSuccess counts a finished job and the bytes it wrote.
func (s *Summary) RecordSuccess(bytes int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Success++
	s.BytesWritten += bytes
}

// RecordFailure counts a failed job.
func (s *Summary) RecordFailure(inputPath, format, message string, timedOut bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Failure++
	if timedOut {
		s.TimedOut++
	}
	s.Failures = append(s.Failures, JobFailure{
		InputPath: inputPath,
		Format:    format,
		Message:   message,
		TimedOut:  timedOut,
		Timestamp: time.Now(),
	})
}

// Finalize computes the duration and throughput.
func (s *Summary) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	done := s.Success + s.Failure
	if s.Duration.Seconds() > 0 {
		s.JobsPerSecond = float64(done) / s.Duration.Seconds()
	}
}

// Snapshot returns the current counters.
func (s *Summary) Snapshot() Counts {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return Counts{
		FilesFound:   s.FilesFound,
		Advisories:   s.Advisories,
		InvalidFiles: s.InvalidFiles,
		SkippedFiles: s.SkippedFiles,
		JobsTotal:    s.JobsTotal,
		Success:      s.Success,
		Failure:      s.Failure,
		TimedOut:     s.TimedOut,
		BytesWritten: s.BytesWritten,
	}
}

// GetSummary returns a formatted summary of the batch.
func (s *Summary) GetSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	location := s.OutputDirectory
	if s.InPlace {
		location += " (in place)"
	}

	return fmt.Sprintf(`%s
Compression complete!

Files:
		Found: %d
		Validated: %d
		Advisories: %d
		Invalid: %d
		Skipped: %d

Jobs:
		Total: %d
		Success: %d
		Failed: %d
		Timed Out: %d

Performance:
		Duration: %v
		Jobs/Second: %.2f
		Bytes Written: %s

Output directory: %s
%s`,
		strings.Repeat("=", 60),
		s.FilesFound,
		s.FilesValidated,
		s.Advisories,
		s.InvalidFiles,
		s.SkippedFiles,
		s.JobsTotal,
		s.Success,
		s.Failure,
		s.TimedOut,
		s.Duration.Round(time.Millisecond),
		s.JobsPerSecond,
		formatBytes(s.BytesWritten),
		location,
		strings.Repeat("=", 60))
}

// GetErrorSummary lists the first failures of the batch.
func (s *Summary) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Failures) == 0 {
		return "No jobs failed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Failures (%d total):\n", len(s.Failures))
	for i, f := range s.Failures {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... and %d more failures\n", len(s.Failures)-10)
			break
		}
		fmt.Fprintf(&b, "  [%s] %s %s: %s\n",
			f.Timestamp.Format("15:04:05"),
			f.Format,
			f.InputPath,
			f.Message)
	}
	return b.String()
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
