package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"imgdataset/pkg/logger"
	"imgdataset/pkg/ratelimit"
	"imgdataset/pkg/storage"
)

// DownloadJob represents a single download task
type DownloadJob struct {
	URL        string
	SourcePage string
	Title      string
	Folder     string
}

// Status is the outcome of a download job
type Status string

const (
	StatusStored    Status = "stored"
	StatusDuplicate Status = "duplicate"
	StatusDiscarded Status = "discarded" // quota reached while in flight
	StatusFailed    Status = "failed"
)

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job      DownloadJob
	Status   Status
	File     *storage.StoredFile
	Image    *ImageInfo
	Error    error
	Duration time.Duration
	Size     int
}

// ImageDownloader fetches image bytes
type ImageDownloader interface {
	DownloadImage(ctx context.Context, url string) ([]byte, string, error)
}

// ImageStorage stores validated images
type ImageStorage interface {
	IsDuplicate(sum string) bool
	Store(data []byte, ext string) (*storage.StoredFile, error)
}

// PoolConfig configures a WorkerPool
type PoolConfig struct {
	Workers   int
	Validate  bool
	Validator Validator
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan DownloadJob
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	stopOnce    sync.Once
	client      ImageDownloader
	storage     ImageStorage
	rateLimiter ratelimit.Limiter
	validate    bool
	validator   Validator
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool bound to ctx
func NewWorkerPool(
	ctx context.Context,
	cfg PoolConfig,
	client ImageDownloader,
	store ImageStorage,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}
	numWorkers := cfg.Workers
	if numWorkers <= 0 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan DownloadJob, numWorkers*2), // Buffer size = 2x workers
		resultQueue: make(chan DownloadResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		client:      client,
		storage:     store,
		rateLimiter: rateLimiter,
		validate:    cfg.Validate,
		validator:   cfg.Validator,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for the workers and closes the results.
// Results must be drained concurrently or Stop may block.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobQueue)
		wp.wg.Wait()
		close(wp.resultQueue)
		wp.cancel()

		wp.logger.Debug("Worker pool stopped")
	})
}

// Submit adds a new download job to the queue
func (wp *WorkerPool) Submit(job DownloadJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		// Drain without work once cancelled so Stop can finish
		if wp.ctx.Err() != nil {
			continue
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
		}
	}
}

// processJob handles a single download job
func (wp *WorkerPool) processJob(job DownloadJob, workerID int) DownloadResult {
	start := time.Now()
	result := DownloadResult{
		Job:    job,
		Status: StatusFailed,
	}
	fail := func(stage string, err error) DownloadResult {
		result.Error = fmt.Errorf("%s failed: %w", stage, err)
		result.Duration = time.Since(start)
		return result
	}

	if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
		return fail("rate limit", err)
	}

	data, contentType, err := wp.client.DownloadImage(wp.ctx, job.URL)
	if err != nil {
		return fail("download", err)
	}
	result.Size = len(data)

	ext := GuessExtension(contentType, job.URL)
	if wp.validate {
		info, err := wp.validator.Validate(data)
		if err != nil {
			return fail("validate", err)
		}
		result.Image = info
		ext = info.Ext
	}

	if wp.storage.IsDuplicate(storage.Hash(data)) {
		result.Status = StatusDuplicate
		result.Duration = time.Since(start)
		return result
	}

	file, err := wp.storage.Store(data, ext)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		result.Status = StatusDuplicate
	case errors.Is(err, storage.ErrQuotaReached):
		result.Status = StatusDiscarded
	case err != nil:
		return fail("save", err)
	default:
		result.Status = StatusStored
		result.File = file
	}
	result.Duration = time.Since(start)

	wp.logger.DebugWithFields("Worker finished job", map[string]interface{}{
		"worker_id": workerID,
		"url":       job.URL,
		"status":    string(result.Status),
		"size":      result.Size,
		"duration":  result.Duration,
	})

	return result
}

// GetQueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}

// GetActiveWorkers returns the number of workers
func (wp *WorkerPool) GetActiveWorkers() int {
	return wp.numWorkers
}
