package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imgdataset/pkg/errors"
	"imgdataset/pkg/logger"
	"imgdataset/pkg/ratelimit"
	"imgdataset/pkg/storage"
)

func pngBytes(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// MockClient serves canned bodies per URL
type MockClient struct {
	bodies          map[string][]byte
	downloadDelay   time.Duration
	downloadError   error
	downloadCounter int32
}

func (m *MockClient) DownloadImage(ctx context.Context, url string) ([]byte, string, error) {
	atomic.AddInt32(&m.downloadCounter, 1)
	if m.downloadDelay > 0 {
		select {
		case <-time.After(m.downloadDelay):
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	if m.downloadError != nil {
		return nil, "", m.downloadError
	}
	body, ok := m.bodies[url]
	if !ok {
		return nil, "", errs.New(errs.ErrorTypeNotFound, 404, "no body for %s", url)
	}
	return body, "image/png", nil
}

func (m *MockClient) GetDownloadCount() int {
	return int(atomic.LoadInt32(&m.downloadCounter))
}

func collect(pool *WorkerPool) (func() []DownloadResult, *sync.WaitGroup) {
	var results []DownloadResult
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			results = append(results, result)
		}
	}()
	return func() []DownloadResult { return results }, &wg
}

func countStatus(results []DownloadResult, status Status) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	client := &MockClient{bodies: map[string][]byte{}, downloadDelay: 5 * time.Millisecond}
	for i := 0; i < 10; i++ {
		client.bodies[fmt.Sprintf("https://example.com/%d.png", i)] = pngBytes(t, 8, 8, uint8(i))
	}

	dir := t.TempDir()
	store, err := storage.NewManager(dir)
	require.NoError(t, err)

	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 3, Validate: true},
		client, store, ratelimit.NewTokenBucket(100, time.Second), logger.NewNopLogger())
	pool.Start()
	results, wg := collect(pool)

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(DownloadJob{URL: fmt.Sprintf("https://example.com/%d.png", i), Folder: "cups"}))
	}

	pool.Stop()
	wg.Wait()

	require.Len(t, results(), 10)
	assert.Equal(t, 10, countStatus(results(), StatusStored))
	assert.Equal(t, 10, store.StoredCount())
	for _, r := range results() {
		require.NotNil(t, r.File)
		require.NotNil(t, r.Image)
		assert.Equal(t, "png", r.Image.Format)
		assert.Equal(t, ".png", r.Image.Ext)
		assert.Equal(t, 8, r.Image.Width)
	}
	assert.FileExists(t, dir+"/000010.png")
}

func TestWorkerPoolDuplicatesAndFailures(t *testing.T) {
	same := pngBytes(t, 4, 4, 1)
	client := &MockClient{bodies: map[string][]byte{
		"https://a.example/1.png": same,
		"https://b.example/1.png": same,
		"https://a.example/tiny":  pngBytes(t, 2, 2, 9),
		"https://a.example/text":  []byte("<html>not an image</html>"),
	}}

	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	pool := NewWorkerPool(context.Background(), PoolConfig{
		Workers:   1,
		Validate:  true,
		Validator: Validator{Decode: true, MinWidth: 3, MinHeight: 3},
	}, client, store, nil, logger.NewNopLogger())
	pool.Start()
	results, wg := collect(pool)

	for _, url := range []string{
		"https://a.example/1.png",
		"https://b.example/1.png",
		"https://a.example/tiny",
		"https://a.example/text",
		"https://a.example/missing",
	} {
		require.NoError(t, pool.Submit(DownloadJob{URL: url}))
	}
	pool.Stop()
	wg.Wait()

	assert.Equal(t, 1, countStatus(results(), StatusStored))
	assert.Equal(t, 1, countStatus(results(), StatusDuplicate))
	assert.Equal(t, 3, countStatus(results(), StatusFailed))
	for _, r := range results() {
		if r.Status == StatusFailed {
			assert.Error(t, r.Error)
		}
	}
}

func TestWorkerPoolQuotaDiscards(t *testing.T) {
	client := &MockClient{bodies: map[string][]byte{}}
	for i := 0; i < 6; i++ {
		client.bodies[fmt.Sprintf("u%d", i)] = pngBytes(t, 4, 4, uint8(i))
	}

	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	store.SetQuota(4)

	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 2}, client, store, nil, logger.NewNopLogger())
	pool.Start()
	results, wg := collect(pool)

	for i := 0; i < 6; i++ {
		require.NoError(t, pool.Submit(DownloadJob{URL: fmt.Sprintf("u%d", i)}))
	}
	pool.Stop()
	wg.Wait()

	assert.Equal(t, 4, countStatus(results(), StatusStored))
	assert.Equal(t, 2, countStatus(results(), StatusDiscarded))
}

func TestWorkerPoolDownloadError(t *testing.T) {
	client := &MockClient{downloadError: errs.New(errs.ErrorTypeNetwork, 0, "connection reset")}
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 2}, client, store, nil, logger.NewNopLogger())
	pool.Start()
	results, wg := collect(pool)

	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(DownloadJob{URL: fmt.Sprintf("u%d", i)}))
	}
	pool.Stop()
	wg.Wait()

	require.Len(t, results(), 3)
	for _, r := range results() {
		assert.Equal(t, StatusFailed, r.Status)
		assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(r.Error))
	}
}

func TestWorkerPoolCancellation(t *testing.T) {
	client := &MockClient{bodies: map[string][]byte{}, downloadDelay: time.Second}
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx, PoolConfig{Workers: 2}, client, store, nil, logger.NewNopLogger())
	pool.Start()
	_, wg := collect(pool)

	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(DownloadJob{URL: fmt.Sprintf("u%d", i)}))
	}

	cancel()
	err = pool.Submit(DownloadJob{URL: "late"})
	if err != nil {
		assert.True(t, errors.Is(err, context.Canceled))
	}

	done := make(chan struct{})
	go func() {
		pool.Stop()
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancellation")
	}
	assert.Equal(t, 0, store.StoredCount())
}

func TestGetQueueSizeAndWorkers(t *testing.T) {
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 0}, &MockClient{}, nil, nil, logger.NewNopLogger())
	assert.Equal(t, 1, pool.GetActiveWorkers())
	assert.Equal(t, 0, pool.GetQueueSize())
}
