package compressor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"texture-compressor-go/internal/texture"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type encodeFunc func(ctx context.Context, job texture.Job) error

func (f encodeFunc) Name() string { return "fake" }

func (f encodeFunc) Encode(ctx context.Context, job texture.Job) error { return f(ctx, job) }

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func writeOutput(_ context.Context, job texture.Job) error {
	return os.WriteFile(job.OutputPath, []byte("DDS payload"), 0644)
}

func makeJobs(t *testing.T, names ...string) []texture.Job {
	t.Helper()
	in := t.TempDir()
	out := t.TempDir()
	jobs := make([]texture.Job, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, texture.Job{
			InputPath:  filepath.Join(in, name+".png"),
			OutputPath: filepath.Join(out, "nested", name+".dds"),
			Format:     texture.BC1,
		})
	}
	return jobs
}

func collect(ch <-chan Result) []Result {
	var results []Result
	for res := range ch {
		results = append(results, res)
	}
	return results
}

func TestPool_AllJobsSucceed(t *testing.T) {
	jobs := makeJobs(t, "a", "b", "c", "d", "e")
	pool := NewPool(encodeFunc(writeOutput), 2, time.Second, testLogger())

	results := collect(pool.Run(context.Background(), jobs))

	require.Len(t, results, len(jobs))
	seen := make(map[string]bool)
	for _, res := range results {
		assert.True(t, res.Success, res.Message)
		assert.Equal(t, int64(len("DDS payload")), res.OutputSize)
		assert.False(t, res.FinishedAt.Before(res.StartedAt))
		assert.FileExists(t, res.Job.OutputPath)
		seen[res.Job.InputPath] = true
	}
	assert.Len(t, seen, len(jobs))
}

func TestPool_SuccessMessage(t *testing.T) {
	jobs := makeJobs(t, "wall")
	results := collect(NewPool(encodeFunc(writeOutput), 1, time.Second, testLogger()).Run(context.Background(), jobs))

	require.Len(t, results, 1)
	assert.Equal(t, "wall.png -> wall.dds", results[0].Message)
}

func TestPool_FailureRemovesPartialOutput(t *testing.T) {
	jobs := makeJobs(t, "broken")
	enc := encodeFunc(func(ctx context.Context, job texture.Job) error {
		if err := os.WriteFile(job.OutputPath, []byte("half"), 0644); err != nil {
			return err
		}
		return errors.New("unsupported pixel format")
	})

	results := collect(NewPool(enc, 1, time.Second, testLogger()).Run(context.Background(), jobs))

	require.Len(t, results, 1)
	res := results[0]
	assert.False(t, res.Success)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "broken.png: unsupported pixel format", res.Message)
	assert.Error(t, res.Error)
	assert.NoFileExists(t, jobs[0].OutputPath)
}

func TestPool_Timeout(t *testing.T) {
	jobs := makeJobs(t, "slow")
	enc := encodeFunc(func(ctx context.Context, job texture.Job) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	results := collect(NewPool(enc, 1, 50*time.Millisecond, testLogger()).Run(context.Background(), jobs))

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.True(t, results[0].TimedOut)
	assert.Equal(t, "slow.png: timeout after 50ms", results[0].Message)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPool_TimeoutDoesNotAffectOtherJobs(t *testing.T) {
	jobs := makeJobs(t, "hang", "ok1", "ok2")
	enc := encodeFunc(func(ctx context.Context, job texture.Job) error {
		if filepath.Base(job.InputPath) == "hang.png" {
			<-ctx.Done()
			return ctx.Err()
		}
		return writeOutput(ctx, job)
	})

	results := collect(NewPool(enc, 2, 100*time.Millisecond, testLogger()).Run(context.Background(), jobs))

	require.Len(t, results, 3)
	var ok, timedOut int
	for _, res := range results {
		if res.Success {
			ok++
		}
		if res.TimedOut {
			timedOut++
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, timedOut)
}

func TestPool_ResultsArriveInCompletionOrder(t *testing.T) {
	jobs := makeJobs(t, "slow", "fast")
	enc := encodeFunc(func(ctx context.Context, job texture.Job) error {
		if filepath.Base(job.InputPath) == "slow.png" {
			time.Sleep(300 * time.Millisecond)
		}
		return writeOutput(ctx, job)
	})

	results := collect(NewPool(enc, 2, time.Second, testLogger()).Run(context.Background(), jobs))

	require.Len(t, results, 2)
	assert.Equal(t, jobs[1].InputPath, results[0].Job.InputPath)
	assert.Equal(t, jobs[0].InputPath, results[1].Job.InputPath)
}

func TestPool_RespectsWorkerLimit(t *testing.T) {
	jobs := makeJobs(t, "a", "b", "c", "d", "e", "f", "g", "h")
	var active, peak int32
	enc := encodeFunc(func(ctx context.Context, job texture.Job) error {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return writeOutput(ctx, job)
	})

	results := collect(NewPool(enc, 3, time.Second, testLogger()).Run(context.Background(), jobs))

	assert.Len(t, results, len(jobs))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestPool_CancelledContext(t *testing.T) {
	jobs := makeJobs(t, "a", "b")
	var calls int32
	enc := encodeFunc(func(ctx context.Context, job texture.Job) error {
		atomic.AddInt32(&calls, 1)
		return writeOutput(ctx, job)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := collect(NewPool(enc, 2, time.Second, testLogger()).Run(ctx, jobs))

	require.Len(t, results, 2)
	for _, res := range results {
		assert.False(t, res.Success)
		assert.False(t, res.TimedOut)
		assert.Contains(t, res.Message, "cancelled before start")
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestPool_CancelledJobKeepsExistingOutput(t *testing.T) {
	jobs := makeJobs(t, "wall")
	require.NoError(t, os.MkdirAll(filepath.Dir(jobs[0].OutputPath), 0755))
	require.NoError(t, os.WriteFile(jobs[0].OutputPath, []byte("previous run"), 0644))

	var calls int32
	enc := encodeFunc(func(ctx context.Context, job texture.Job) error {
		atomic.AddInt32(&calls, 1)
		return writeOutput(ctx, job)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := collect(NewPool(enc, 1, time.Second, testLogger()).Run(ctx, jobs))

	require.Len(t, results, 1)
	assert.Equal(t, "wall.png: cancelled before start", results[0].Message)
	assert.Zero(t, atomic.LoadInt32(&calls))

	data, err := os.ReadFile(jobs[0].OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(data))
}

func TestPool_MissingOutputIsFailure(t *testing.T) {
	jobs := makeJobs(t, "ghost")
	enc := encodeFunc(func(context.Context, texture.Job) error { return nil })

	results := collect(NewPool(enc, 1, time.Second, testLogger()).Run(context.Background(), jobs))

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Message, "wrote no output")
}

func TestPool_NoJobs(t *testing.T) {
	results := collect(NewPool(encodeFunc(writeOutput), 4, time.Second, testLogger()).Run(context.Background(), nil))
	assert.Empty(t, results)
}

func TestNewPool_Defaults(t *testing.T) {
	pool := NewPool(encodeFunc(writeOutput), 0, 0, testLogger())
	assert.Equal(t, DefaultWorkers(), pool.Workers())
	assert.Equal(t, DefaultTimeout, pool.timeout)
	assert.GreaterOrEqual(t, DefaultWorkers(), 1)
}

func TestPool_ManyJobsOneResultEach(t *testing.T) {
	names := make([]string, 50)
	for i := range names {
		names[i] = fmt.Sprintf("tex%02d", i)
	}
	jobs := makeJobs(t, names...)

	results := collect(NewPool(encodeFunc(writeOutput), 4, time.Second, testLogger()).Run(context.Background(), jobs))

	require.Len(t, results, len(jobs))
	counts := make(map[string]int)
	for _, res := range results {
		counts[res.Job.OutputPath]++
	}
	for _, job := range jobs {
		assert.Equal(t, 1, counts[job.OutputPath], job.OutputPath)
	}
}
