package crawler

import (
	"context"

	"imgdataset/pkg/bing"
)

// SearchClient defines the image search operations the crawler needs
type SearchClient interface {
	Search(ctx context.Context, keyword string, offset, count int) ([]bing.ImageResult, error)
	DownloadImage(ctx context.Context, url string) ([]byte, string, error)
}

// Progress receives progress events of one fetch
type Progress interface {
	ScanningPage(page, offset int)
	CompleteDownload(filename string, size int64)
	SkipDownload(url string)
	FailDownload(url string, err error)
	Complete()
}

// ProgressFactory creates the progress sink for a category
type ProgressFactory func(folder string, requested int) Progress

type nopProgress struct{}

func (nopProgress) ScanningPage(int, int)          {}
func (nopProgress) CompleteDownload(string, int64) {}
func (nopProgress) SkipDownload(string)            {}
func (nopProgress) FailDownload(string, error)     {}
func (nopProgress) Complete()                      {}
