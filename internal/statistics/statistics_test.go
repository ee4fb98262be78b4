package statistics

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummary_Counters(t *testing.T) {
	s := NewSummary("run-1", "/out")
	s.RecordValidation(4, 4, 1, 0, 0)
	s.SetJobsTotal(4)
	s.RecordSuccess(2048)
	s.RecordSuccess(1024)
	s.RecordFailure("/in/c.png", "BC1", "c.png: boom", false)
	s.RecordFailure("/in/d.png", "BC1", "d.png: timeout after 60s", true)
	s.Finalize()

	c := s.Snapshot()
	assert.Equal(t, int64(4), c.FilesFound)
	assert.Equal(t, int64(1), c.Advisories)
	assert.Equal(t, int64(4), c.JobsTotal)
	assert.Equal(t, int64(2), c.Success)
	assert.Equal(t, int64(2), c.Failure)
	assert.Equal(t, int64(1), c.TimedOut)
	assert.Equal(t, int64(3072), c.BytesWritten)
	assert.Equal(t, c.JobsTotal, c.Success+c.Failure)
	assert.False(t, s.EndTime.Before(s.StartTime))
}

func TestSummary_ConcurrentRecording(t *testing.T) {
	s := NewSummary("run-2", "/out")
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.RecordSuccess(10)
			} else {
				s.RecordFailure(fmt.Sprintf("/in/%d.png", i), "BC3", "failed", false)
			}
		}(i)
	}
	wg.Wait()

	c := s.Snapshot()
	assert.Equal(t, int64(50), c.Success)
	assert.Equal(t, int64(50), c.Failure)
	assert.Len(t, s.Failures, 50)
}

func TestSummary_GetSummary(t *testing.T) {
	s := NewSummary("run-3", "/textures/out")
	s.SetJobsTotal(2)
	s.RecordSuccess(100)
	s.RecordFailure("/in/b.png", "BC1", "b.png: bad", false)
	s.Finalize()

	text := s.GetSummary()
	assert.Contains(t, text, "Compression complete!")
	assert.Contains(t, text, "Success: 1")
	assert.Contains(t, text, "Failed: 1")
	assert.Contains(t, text, "Output directory: /textures/out")
	assert.NotContains(t, text, "(in place)")

	s.InPlace = true
	assert.Contains(t, s.GetSummary(), "(in place)")
}

func TestSummary_GetErrorSummary(t *testing.T) {
	s := NewSummary("run-4", "/out")
	assert.Equal(t, "No jobs failed", s.GetErrorSummary())

	for i := 0; i < 12; i++ {
		s.RecordFailure(fmt.Sprintf("/in/%02d.png", i), "BC2", "broken", false)
	}
	text := s.GetErrorSummary()
	assert.Contains(t, text, "Failures (12 total)")
	assert.Contains(t, text, "/in/09.png")
	assert.NotContains(t, text, "/in/10.png")
	assert.Contains(t, text, "and 2 more failures")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KB", formatBytes(1024))
	assert.Equal(t, "1.5 MB", formatBytes(1536*1024))
}
