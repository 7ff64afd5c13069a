package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	errs "imgdataset/pkg/errors"
	"imgdataset/pkg/logger"
	"imgdataset/pkg/models"
)

// DefaultRoot is the dataset directory used when none is configured
const DefaultRoot = "dataset"

// ErrEmptyFolder is returned for a category without a folder name
var ErrEmptyFolder = errors.New("category folder name must not be empty")

// Fetcher stores up to MaxCount images for a keyword under a destination directory
type Fetcher interface {
	Fetch(ctx context.Context, req models.FetchRequest) (*models.FetchSummary, error)
}

// Observer is notified around every category fetch
type Observer interface {
	CategoryStarted(cat models.CategorySpec)
	CategoryFinished(cat models.CategorySpec, summary *models.FetchSummary, err error)
}

// Options configures a Builder
type Options struct {
	Root       string
	Categories []models.CategorySpec
	MaxCount   int
	StartIndex int
}

// CategoryReport is the outcome of one category
type CategoryReport struct {
	Folder      string               `json:"folder"`
	Keyword     string               `json:"keyword"`
	Destination string               `json:"destination"`
	Summary     *models.FetchSummary `json:"summary"`
}

// Report lists the categories processed by Run in order
type Report struct {
	Root       string           `json:"root"`
	Categories []CategoryReport `json:"categories"`
	Duration   time.Duration    `json:"duration"`
}

// Downloaded returns the number of images stored across all categories
func (r *Report) Downloaded() int {
	total := 0
	for _, c := range r.Categories {
		if c.Summary != nil {
			total += c.Summary.Downloaded
		}
	}
	return total
}

// Builder creates the dataset layout and fills one directory per category
type Builder struct {
	opts     Options
	fetcher  Fetcher
	observer Observer
	logger   logger.Logger
}

// NewBuilder creates a Builder that delegates crawling to fetcher
func NewBuilder(opts Options, fetcher Fetcher, log logger.Logger) *Builder {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Root == "" {
		opts.Root = DefaultRoot
	}
	return &Builder{
		opts:    opts,
		fetcher: fetcher,
		logger:  log.WithField("root", opts.Root),
	}
}

// SetObserver registers an observer for category events
func (b *Builder) SetObserver(o Observer) {
	b.observer = o
}

// Root returns the dataset root directory
func (b *Builder) Root() string {
	return b.opts.Root
}

// CategoryDir returns the directory of a category
func (b *Builder) CategoryDir(folder string) string {
	return filepath.Join(b.opts.Root, folder)
}

// EnsureRoot creates the root directory if it does not exist
func (b *Builder) EnsureRoot() error {
	if err := os.MkdirAll(b.opts.Root, 0755); err != nil {
		return &errs.FilesystemError{Op: "mkdir", Path: b.opts.Root, Err: err}
	}
	return nil
}

// EnsureCategoryDir creates root/folder if it does not exist. Existing
// contents are left untouched.
func (b *Builder) EnsureCategoryDir(folder string) error {
	if folder == "" {
		return ErrEmptyFolder
	}

	dir := b.CategoryDir(folder)
	err := os.Mkdir(dir, 0755)
	if err == nil {
		b.logger.DebugWithFields("Created category directory", map[string]interface{}{
			"dir": dir,
		})
		return nil
	}
	if os.IsExist(err) {
		info, statErr := os.Stat(dir)
		if statErr == nil && info.IsDir() {
			return nil
		}
		return &errs.FilesystemError{Op: "mkdir", Path: dir, Err: errors.New("exists and is not a directory")}
	}
	return &errs.FilesystemError{Op: "mkdir", Path: dir, Err: err}
}

// FetchCategory asks the fetcher for up to maxCount images of keyword, stored
// under root/folder and numbered after startIndex
func (b *Builder) FetchCategory(ctx context.Context, folder, keyword string, maxCount, startIndex int) (*models.FetchSummary, error) {
	req := models.FetchRequest{
		Keyword:     keyword,
		Destination: b.CategoryDir(folder),
		MaxCount:    maxCount,
		StartIndex:  startIndex,
	}

	summary, err := b.fetcher.Fetch(ctx, req)
	if err != nil {
		return summary, &errs.FetchError{Folder: folder, Keyword: keyword, Err: err}
	}
	return summary, nil
}

// Run builds the dataset. Categories are processed one at a time in declared
// order and the first failure ends the run. Images stored for earlier
// categories are kept.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{Root: b.opts.Root}
	defer func() { report.Duration = time.Since(start) }()

	if err := models.ValidateCategories(b.opts.Categories); err != nil {
		return report, fmt.Errorf("invalid categories: %w", err)
	}

	if err := b.EnsureRoot(); err != nil {
		b.logger.WithError(err).Error("Failed to create dataset root")
		return report, err
	}

	b.logger.InfoWithFields("Building dataset", map[string]interface{}{
		"categories":  len(b.opts.Categories),
		"max_count":   b.opts.MaxCount,
		"start_index": b.opts.StartIndex,
	})

	for _, cat := range b.opts.Categories {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("build cancelled: %w", err)
		}

		log := b.logger.WithFields(map[string]interface{}{
			"folder":  cat.Folder,
			"keyword": cat.Keyword,
		})

		if err := b.EnsureCategoryDir(cat.Folder); err != nil {
			log.WithError(err).Error("Failed to create category directory")
			return report, err
		}

		if b.observer != nil {
			b.observer.CategoryStarted(cat)
		}
		summary, err := b.FetchCategory(ctx, cat.Folder, cat.Keyword, b.opts.MaxCount, b.opts.StartIndex)
		if b.observer != nil {
			b.observer.CategoryFinished(cat, summary, err)
		}
		if err != nil {
			log.WithError(err).Error("Category fetch failed")
			return report, err
		}

		report.Categories = append(report.Categories, CategoryReport{
			Folder:      cat.Folder,
			Keyword:     cat.Keyword,
			Destination: b.CategoryDir(cat.Folder),
			Summary:     summary,
		})

		if summary != nil {
			log.InfoWithFields("Category finished", map[string]interface{}{
				"downloaded": summary.Downloaded,
				"failed":     summary.Failed,
				"duration":   summary.Duration,
			})
		}
	}

	return report, nil
}
