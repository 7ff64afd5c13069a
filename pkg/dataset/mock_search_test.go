package dataset_test

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
)

// mockSearchServer simulates the image search endpoint and an image CDN
type mockSearchServer struct {
	server         *httptest.Server
	imagesPerQuery int
	requestCount   int32
	rateLimitHits  int32
	mu             sync.RWMutex
	errorResponses map[string]int // keyword -> status code
	rateLimitNext  map[string]int // keyword -> number of 429 responses left
}

func newMockSearchServer(imagesPerQuery int) *mockSearchServer {
	m := &mockSearchServer{
		imagesPerQuery: imagesPerQuery,
		errorResponses: make(map[string]int),
		rateLimitNext:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/images/async", m.handleSearch)
	mux.HandleFunc("/img/", m.handleImage)

	m.server = httptest.NewServer(mux)
	return m
}

func (m *mockSearchServer) URL() string { return m.server.URL }

func (m *mockSearchServer) Close() { m.server.Close() }

func (m *mockSearchServer) SetErrorResponse(keyword string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorResponses[keyword] = code
}

func (m *mockSearchServer) RateLimit(keyword string, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitNext[keyword] = times
}

func (m *mockSearchServer) Requests() int { return int(atomic.LoadInt32(&m.requestCount)) }

func (m *mockSearchServer) RateLimitHits() int { return int(atomic.LoadInt32(&m.rateLimitHits)) }

func (m *mockSearchServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)
	q := r.URL.Query()
	keyword := q.Get("q")

	m.mu.Lock()
	code := m.errorResponses[keyword]
	limited := m.rateLimitNext[keyword] > 0
	if limited {
		m.rateLimitNext[keyword]--
	}
	m.mu.Unlock()

	if code > 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}
	if limited {
		atomic.AddInt32(&m.rateLimitHits, 1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	first, _ := strconv.Atoi(q.Get("first"))
	count, _ := strconv.Atoi(q.Get("count"))

	fmt.Fprint(w, `<ul class="dgControl_list">`)
	for i := first; i < first+count && i < m.imagesPerQuery; i++ {
		fmt.Fprintf(w, `<li><div class="imgpt"><a class="iusc" m='{"murl":"%s/img/%s/%d.png","purl":"https://example.com/%d","t":"%s %d"}'></a></div></li>`,
			m.server.URL, url.PathEscape(keyword), i, i, keyword, i)
	}
	fmt.Fprint(w, `</ul>`)
}

// handleImage serves a distinct PNG for every path
func (m *mockSearchServer) handleImage(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)

	var seed uint32
	for _, b := range []byte(r.URL.Path) {
		seed = seed*31 + uint32(b)
	}

	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for x := 0; x < 16; x++ {
		for y := 0; y < 12; y++ {
			img.Set(x, y, color.RGBA{R: uint8(seed), G: uint8(seed >> 8), B: uint8(x*y + int(seed>>16)), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
