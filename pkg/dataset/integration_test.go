package dataset_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgdataset/pkg/config"
	"imgdataset/pkg/crawler"
	"imgdataset/pkg/dataset"
	errs "imgdataset/pkg/errors"
	"imgdataset/pkg/logger"
	"imgdataset/pkg/models"
)

func testConfig(t *testing.T, server *mockSearchServer) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Dataset.Root = filepath.Join(t.TempDir(), "dataset")
	cfg.Search.BaseURL = server.URL()
	cfg.Search.PageSize = 4
	cfg.Search.RequestTimeout = 5 * time.Second
	cfg.RateLimit.RequestsPerMinute = 6000
	cfg.RateLimit.MaxRetries = 2
	cfg.RateLimit.RetryDelay = time.Millisecond
	cfg.Download.ConcurrentDownloads = 3
	return cfg
}

func newBuilder(cfg *config.Config, cats []models.CategorySpec, maxCount int) *dataset.Builder {
	log := logger.NewNopLogger()
	opts := crawler.OptionsFromConfig(cfg)
	opts.Checkpoints = false
	return dataset.NewBuilder(dataset.Options{
		Root:       cfg.Dataset.Root,
		Categories: cats,
		MaxCount:   maxCount,
		StartIndex: 0,
	}, crawler.NewFromConfig(cfg, opts, log), log)
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestEndToEndBuild(t *testing.T) {
	server := newMockSearchServer(10)
	defer server.Close()
	cfg := testConfig(t, server)

	cats := []models.CategorySpec{
		{Folder: "paper_cup", Keyword: "paper cup"},
		{Folder: "aluminum_can", Keyword: "aluminum can"},
	}
	report, err := newBuilder(cfg, cats, 6).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Categories, 2)
	assert.Equal(t, 12, report.Downloaded())
	for _, cat := range cats {
		dir := filepath.Join(cfg.Dataset.Root, cat.Folder)
		assert.Equal(t, 6, countFiles(t, dir))
		assert.FileExists(t, filepath.Join(dir, "000001.png"))
		assert.FileExists(t, filepath.Join(dir, "000006.png"))
	}
}

func TestEndToEndRecoversFromRateLimit(t *testing.T) {
	server := newMockSearchServer(3)
	defer server.Close()
	server.RateLimit("paper cup", 1)
	cfg := testConfig(t, server)

	report, err := newBuilder(cfg, []models.CategorySpec{{Folder: "paper_cup", Keyword: "paper cup"}}, 3).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, server.RateLimitHits())
	assert.Equal(t, 3, report.Downloaded())
}

func TestEndToEndStopsOnFetchError(t *testing.T) {
	server := newMockSearchServer(5)
	defer server.Close()
	server.SetErrorResponse("plastic bottle", 403)
	cfg := testConfig(t, server)

	cats := []models.CategorySpec{
		{Folder: "paper_cup", Keyword: "paper cup"},
		{Folder: "plastic_bottle", Keyword: "plastic bottle"},
		{Folder: "cardboard_box", Keyword: "cardboard box"},
	}
	report, err := newBuilder(cfg, cats, 2).Run(context.Background())
	require.Error(t, err)

	var fetchErr *errs.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "plastic_bottle", fetchErr.Folder)
	assert.Equal(t, errs.ErrorTypeAuth, errs.TypeOf(err))

	assert.Len(t, report.Categories, 1)
	assert.Equal(t, 2, countFiles(t, filepath.Join(cfg.Dataset.Root, "paper_cup")))
	assert.NoDirExists(t, filepath.Join(cfg.Dataset.Root, "cardboard_box"))
}

func TestEndToEndNoResults(t *testing.T) {
	server := newMockSearchServer(0)
	defer server.Close()
	cfg := testConfig(t, server)

	_, err := newBuilder(cfg, []models.CategorySpec{{Folder: "unicorns", Keyword: "unicorn"}}, 5).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNoResults, errs.TypeOf(err))
}
