package crawler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"imgdataset/internal/downloader"
	"imgdataset/pkg/bing"
	"imgdataset/pkg/checkpoint"
	"imgdataset/pkg/config"
	errs "imgdataset/pkg/errors"
	"imgdataset/pkg/logger"
	"imgdataset/pkg/metadata"
	"imgdataset/pkg/models"
	"imgdataset/pkg/ratelimit"
	"imgdataset/pkg/storage"
)

// Options configures a Crawler
type Options struct {
	PageSize int
	MaxPages int // 0 means no page limit
	Workers  int

	Validate  bool
	Validator downloader.Validator

	SkipDuplicates bool
	WriteMetadata  bool

	// Checkpoints enables per-category resume state
	Checkpoints  bool
	Resume       bool
	ForceRestart bool

	// Limiter gates each pool job on top of the client's request limiter;
	// nil means unlimited
	Limiter  ratelimit.Limiter
	Progress ProgressFactory
}

// OptionsFromConfig derives crawler options from the configuration
// The requests_per_minute budget is enforced by the Bing client built in
// NewFromConfig, so the returned options carry no limiter of their own.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PageSize: cfg.Search.PageSize,
		MaxPages: cfg.Search.MaxPages,
		Workers:  cfg.Download.ConcurrentDownloads,
		Validate: cfg.Download.ValidateImages,
		Validator: downloader.Validator{
			Decode:    true,
			MinWidth:  cfg.Download.MinWidth,
			MinHeight: cfg.Download.MinHeight,
		},
		SkipDuplicates: cfg.Output.SkipDuplicates,
		WriteMetadata:  cfg.Output.WriteMetadata,
		Checkpoints:    true,
	}
}

// Crawler fills a directory with images found for a keyword
type Crawler struct {
	client SearchClient
	opts   Options
	logger logger.Logger
}

// New creates a crawler on top of client
func New(client SearchClient, opts Options, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = bing.DefaultPageSize
	}
	if opts.PageSize > bing.MaxPageSize {
		opts.PageSize = bing.MaxPageSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}
	if opts.Progress == nil {
		opts.Progress = func(string, int) Progress { return nopProgress{} }
	}

	return &Crawler{
		client: client,
		opts:   opts,
		logger: log.WithField("component", "crawler"),
	}
}

// NewFromConfig creates a crawler backed by a Bing client
func NewFromConfig(cfg *config.Config, opts Options, log logger.Logger) *Crawler {
	return New(bing.NewClientFromConfig(cfg, log), opts, log)
}

// fetchState is shared by the feeder and the result consumer of one fetch
type fetchState struct {
	mu        sync.Mutex
	cpMgr     *checkpoint.Manager
	cp        *checkpoint.Checkpoint
	meta      *metadata.Writer
	progress  Progress
	log       logger.Logger
	folder    string
	quota     int
	stored    int
	skipped   int
	failed    int
	discarded int
}

// Fetch downloads up to req.MaxCount images for req.Keyword into req.Destination
func (c *Crawler) Fetch(ctx context.Context, req models.FetchRequest) (*models.FetchSummary, error) {
	start := time.Now()
	folder := filepath.Base(filepath.Clean(req.Destination))
	log := c.logger.WithFields(map[string]interface{}{
		"folder":  folder,
		"keyword": req.Keyword,
	})

	summary := &models.FetchSummary{
		Keyword:     req.Keyword,
		Destination: req.Destination,
		Requested:   req.MaxCount,
	}
	defer func() { summary.Duration = time.Since(start) }()

	if req.MaxCount <= 0 {
		log.Debug("Nothing requested, skipping fetch")
		return summary, nil
	}

	store, err := storage.NewManager(req.Destination, storage.WithDedup(c.opts.SkipDuplicates))
	if err != nil {
		return summary, &errs.FilesystemError{Op: "open", Path: req.Destination, Err: err}
	}

	st := &fetchState{folder: folder, log: log}
	st.cpMgr, st.cp = c.openCheckpoint(folder, req, log)

	startIndex := req.StartIndex
	offset, pages, already := 0, 0, 0
	if st.cp != nil {
		if st.cp.Completed {
			log.Info("Category already completed, skipping")
			summary.Downloaded = st.cp.TotalDownloaded
			summary.Pages = st.cp.Pages
			return summary, nil
		}
		// Files stored after the last checkpoint write are kept, not overwritten
		startIndex = max(st.cp.NextIndex-1, store.MaxIndex())
		offset = st.cp.Offset
		pages = st.cp.Pages
		already = st.cp.TotalDownloaded
		log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
			"downloaded": already,
			"offset":     offset,
			"next_index": st.cp.NextIndex,
		})
	}

	store.StartAfter(startIndex)
	summary.FirstIndex = store.NextIndex()
	st.quota = req.MaxCount - already
	if st.quota <= 0 {
		summary.Downloaded = already
		st.markCompleted()
		return summary, nil
	}
	store.SetQuota(st.quota)

	if st.cpMgr != nil && st.cp == nil {
		cp, err := st.cpMgr.Create(folder, req.Keyword, req.Destination, store.NextIndex())
		if err != nil {
			log.WithError(err).Warn("Failed to create checkpoint, continuing without one")
		}
		st.cp = cp
	}

	if c.opts.WriteMetadata {
		meta, err := metadata.Open(req.Destination, folder, req.Keyword)
		if err != nil {
			log.WithError(err).Warn("Failed to open metadata file, continuing without it")
		}
		st.meta = meta
	}

	st.progress = c.opts.Progress(folder, st.quota)

	logger.LogComponentStart("crawler", map[string]interface{}{
		"folder":      folder,
		"max_count":   req.MaxCount,
		"first_index": summary.FirstIndex,
		"workers":     c.opts.Workers,
	})

	poolCtx, cancelPool := context.WithCancel(ctx)
	defer cancelPool()

	pool := downloader.NewWorkerPool(poolCtx, downloader.PoolConfig{
		Workers:   c.opts.Workers,
		Validate:  c.opts.Validate,
		Validator: c.opts.Validator,
	}, c.client, store, c.opts.Limiter, log)
	pool.Start()

	var consumer sync.WaitGroup
	consumer.Add(1)
	go func() {
		defer consumer.Done()
		st.consume(pool.Results(), cancelPool)
	}()

	submitted, searchErr := c.feed(poolCtx, req.Keyword, pool, st, &offset, &pages)

	pool.Stop()
	consumer.Wait()

	st.mu.Lock()
	summary.Downloaded = already + st.stored
	summary.Skipped = st.skipped
	summary.Failed = st.failed
	summary.Pages = pages
	stored := st.stored
	st.mu.Unlock()

	if st.meta != nil {
		if err := st.meta.Flush(); err != nil {
			log.WithError(err).Warn("Failed to write metadata file")
		}
	}
	st.progress.Complete()

	logger.LogCategoryProgress(folder, summary.Downloaded, req.MaxCount)
	logger.LogComponentStop("crawler", fmt.Sprintf("%d stored", stored))

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("fetch cancelled: %w", err)
	}

	if searchErr != nil && pages == 0 && already == 0 {
		return summary, fmt.Errorf("search %q: %w", req.Keyword, searchErr)
	}
	if searchErr != nil {
		log.WithError(searchErr).Warn("Search failed on a later page, keeping what was stored")
	}

	if submitted == 0 && already == 0 {
		return summary, errs.New(errs.ErrorTypeNoResults, 0, "no images found for %q", req.Keyword)
	}

	st.markCompleted()
	return summary, nil
}

// feed pages through the search results and queues every new image URL.
// It returns the number of submitted jobs and the search error that ended
// paging, if any.
func (c *Crawler) feed(ctx context.Context, keyword string, pool *downloader.WorkerPool, st *fetchState, offset, pages *int) (int, error) {
	seen := make(map[string]bool)
	submitted := 0

	for c.opts.MaxPages <= 0 || *pages < c.opts.MaxPages {
		if ctx.Err() != nil {
			return submitted, nil
		}

		st.progress.ScanningPage(*pages+1, *offset)
		results, err := c.client.Search(ctx, keyword, *offset, c.opts.PageSize)
		if err != nil {
			if ctx.Err() != nil {
				return submitted, nil
			}
			return submitted, err
		}
		*pages++
		*offset += len(results)

		if len(results) == 0 {
			st.log.DebugWithFields("Search exhausted", map[string]interface{}{
				"pages": *pages,
			})
			break
		}

		for _, r := range results {
			if seen[r.URL] || st.isDownloaded(r.URL) {
				continue
			}
			seen[r.URL] = true

			job := downloader.DownloadJob{
				URL:        r.URL,
				SourcePage: r.SourcePage,
				Title:      r.Title,
				Folder:     st.folder,
			}
			if err := pool.Submit(job); err != nil {
				return submitted, nil
			}
			submitted++
		}

		st.updateProgress(*offset, *pages)
	}

	return submitted, nil
}

// consume records the results of the pool and stops it once the quota is met
func (st *fetchState) consume(results <-chan downloader.DownloadResult, stop context.CancelFunc) {
	for result := range results {
		st.mu.Lock()
		switch result.Status {
		case downloader.StatusStored:
			st.stored++
			st.recordStored(result)
			if st.stored >= st.quota {
				stop()
			}
		case downloader.StatusDuplicate:
			st.skipped++
			st.progress.SkipDownload(result.Job.URL)
			logger.LogDownload(st.folder, "", result.Job.URL, false, nil)
		case downloader.StatusDiscarded:
			st.discarded++
		default:
			if errors.Is(result.Error, context.Canceled) {
				st.discarded++
				break
			}
			st.failed++
			st.progress.FailDownload(result.Job.URL, result.Error)
			logger.LogDownload(st.folder, "", result.Job.URL, false, result.Error)
		}
		st.mu.Unlock()
	}
}

// recordStored must be called with st.mu held
func (st *fetchState) recordStored(result downloader.DownloadResult) {
	file := result.File
	st.progress.CompleteDownload(file.Filename, file.Size)
	logger.LogDownload(st.folder, file.Filename, result.Job.URL, true, nil)

	if st.cp != nil {
		if err := st.cpMgr.RecordDownload(st.cp, result.Job.URL, file.Filename, file.Index); err != nil {
			st.log.WithError(err).Warn("Failed to record download in checkpoint")
		}
	}

	if st.meta != nil {
		rec := metadata.ImageMetadata{
			Filename:     file.Filename,
			URL:          result.Job.URL,
			SourcePage:   result.Job.SourcePage,
			Title:        result.Job.Title,
			FileSize:     file.Size,
			SHA256:       file.SHA256,
			DownloadedAt: time.Now(),
		}
		if img := result.Image; img != nil {
			rec.Format = img.Format
			rec.Width = img.Width
			rec.Height = img.Height
		}
		st.meta.Add(rec)
	}
}

func (st *fetchState) isDownloaded(url string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cp != nil && st.cp.IsDownloaded(url)
}

func (st *fetchState) updateProgress(offset, pages int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cp == nil {
		return
	}
	if err := st.cpMgr.UpdateProgress(st.cp, offset, pages); err != nil {
		st.log.WithError(err).Warn("Failed to update checkpoint progress")
	}
}

func (st *fetchState) markCompleted() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cp == nil {
		return
	}
	if err := st.cpMgr.MarkCompleted(st.cp); err != nil {
		st.log.WithError(err).Warn("Failed to mark checkpoint completed")
	}
}

// openCheckpoint returns the checkpoint manager of folder and, when resuming,
// the checkpoint to continue from
func (c *Crawler) openCheckpoint(folder string, req models.FetchRequest, log logger.Logger) (*checkpoint.Manager, *checkpoint.Checkpoint) {
	if !c.opts.Checkpoints {
		return nil, nil
	}

	mgr, err := checkpoint.NewManager(folder, req.Destination)
	if err != nil {
		log.WithError(err).Warn("Checkpoints unavailable")
		return nil, nil
	}

	if c.opts.ForceRestart {
		if err := mgr.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete existing checkpoint")
		}
		return mgr, nil
	}
	if !c.opts.Resume {
		return mgr, nil
	}

	cp, err := mgr.Load()
	if err != nil {
		log.WithError(err).Warn("Failed to load checkpoint, starting fresh")
		return mgr, nil
	}
	if cp != nil && !cp.Matches(req.Keyword, req.Destination) {
		log.WarnWithFields("Checkpoint belongs to a different crawl, starting fresh", map[string]interface{}{
			"checkpoint_keyword": cp.Keyword,
			"checkpoint_dest":    cp.Destination,
		})
		return mgr, nil
	}
	return mgr, cp
}
