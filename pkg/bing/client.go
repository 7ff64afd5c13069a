package bing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"imgdataset/pkg/config"
	errs "imgdataset/pkg/errors"
	"imgdataset/pkg/logger"
	"imgdataset/pkg/ratelimit"
	"imgdataset/pkg/retry"
)

// Options configures a Client
type Options struct {
	BaseURL     string
	UserAgent   string
	SafeSearch  string
	Filters     string
	Timeout     time.Duration
	// DownloadTimeout bounds each image download attempt; 0 means only Timeout applies
	DownloadTimeout time.Duration
	MinFileSize     int64
	MaxFileSize     int64 // 0 means no limit
	// Limiter gates every request attempt, searches and downloads alike; nil means unlimited
	Limiter ratelimit.Limiter
	// Retry configures retries of retryable failures; nil disables retrying
	Retry *retry.Config
}

// Client talks to Bing image search and downloads the images it finds
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	opts       Options
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a new Bing client
func NewClient(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
	}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		headers: headers,
		opts:    opts,
		limiter: limiter,
		logger:  log,
	}
}

// NewClientFromConfig builds a client from the search, rate_limit and download sections
func NewClientFromConfig(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	retryCfg := retry.FromRateLimit(cfg.RateLimit, log)
	retryCfg.ErrorBackoff = retry.NewErrorTypeBackoff(cfg.RateLimit.RetryDelay)

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter = ratelimit.NewSlidingWindow(cfg.RateLimit.RequestsPerMinute, time.Minute)
	}

	return NewClient(Options{
		BaseURL:         cfg.Search.BaseURL,
		UserAgent:       cfg.Search.UserAgent,
		SafeSearch:      cfg.Search.SafeSearch,
		Filters:         cfg.Search.Filters,
		Timeout:         cfg.Search.RequestTimeout,
		DownloadTimeout: cfg.Download.DownloadTimeout,
		MinFileSize:     cfg.Download.MinFileSize,
		MaxFileSize:     cfg.Download.MaxFileSize,
		Limiter:         limiter,
		Retry:           retryCfg,
	}, log)
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// get performs a GET request and checks the response status
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	if err := c.checkResponseStatus(resp); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, err
	}

	return resp, nil
}

// checkResponseStatus checks the HTTP response status and returns appropriate errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	code := resp.StatusCode
	fields := map[string]interface{}{
		"status": code,
		"url":    resp.Request.URL.String(),
	}

	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		c.logger.WarnWithFields("access denied", fields)
		return errs.New(errs.ErrorTypeAuth, code, "access denied")
	case code == http.StatusNotFound || code == http.StatusGone:
		c.logger.DebugWithFields("resource not found", fields)
		return errs.New(errs.ErrorTypeNotFound, code, "resource not found")
	case code == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		logger.LogRateLimit(resp.Request.URL.Host, retryAfter)
		return errs.New(errs.ErrorTypeRateLimit, code, "rate limit exceeded")
	case code >= 500:
		c.logger.WarnWithFields("server error", fields)
		return errs.New(errs.ErrorTypeServerError, code, "server error")
	default:
		c.logger.WarnWithFields("unexpected status", fields)
		return errs.New(errs.ErrorTypeUnknown, code, "unexpected status code: %d", code)
	}
}

// withRetry runs op under the client's retry configuration
func (c *Client) withRetry(ctx context.Context, op retry.Operation) error {
	if c.opts.Retry == nil {
		return op()
	}
	return retry.Do(op, c.opts.Retry.WithContext(ctx))
}

// Search fetches one page of results for keyword starting at offset
func (c *Client) Search(ctx context.Context, keyword string, offset, count int) ([]ImageResult, error) {
	searchURL := SearchURL(c.opts.BaseURL, keyword, offset, count, c.opts.SafeSearch, c.opts.Filters)

	var results []ImageResult
	err := c.withRetry(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.get(ctx, searchURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		results, err = ParseResults(resp.Body)
		return err
	})
	if err != nil {
		c.logger.WarnWithFields("search page failed", map[string]interface{}{
			"keyword": keyword,
			"offset":  offset,
			"error":   err.Error(),
		})
		return nil, err
	}

	logger.LogSearchPage(keyword, offset, len(results))
	return results, nil
}

// DownloadImage fetches an image and enforces the configured size limits
func (c *Client) DownloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	var (
		data        []byte
		contentType string
	)

	err := c.withRetry(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		dctx := ctx
		if c.opts.DownloadTimeout > 0 {
			var cancel context.CancelFunc
			dctx, cancel = context.WithTimeout(ctx, c.opts.DownloadTimeout)
			defer cancel()
		}

		resp, err := c.get(dctx, imageURL)
		if err != nil {
			return c.downloadTimeout(ctx, dctx, err)
		}
		defer resp.Body.Close()

		contentType = resp.Header.Get("Content-Type")
		if ct := strings.ToLower(contentType); ct != "" && !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "application/octet-stream") && !strings.HasPrefix(ct, "binary/") {
			return errs.New(errs.ErrorTypeInvalidImage, resp.StatusCode, "unexpected content type %q", contentType)
		}

		limit := c.opts.MaxFileSize
		if limit > 0 && resp.ContentLength > limit {
			return errs.New(errs.ErrorTypeInvalidImage, resp.StatusCode, "image too large: %d bytes", resp.ContentLength)
		}

		body := io.Reader(resp.Body)
		if limit > 0 {
			body = io.LimitReader(resp.Body, limit+1)
		}

		data, err = io.ReadAll(body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return c.downloadTimeout(ctx, dctx, errs.New(errs.ErrorTypeNetwork, 0, "failed to read image: %v", err))
		}

		if limit > 0 && int64(len(data)) > limit {
			return errs.New(errs.ErrorTypeInvalidImage, resp.StatusCode, "image too large: more than %d bytes", limit)
		}
		if len(data) == 0 || int64(len(data)) < c.opts.MinFileSize {
			return errs.New(errs.ErrorTypeInvalidImage, resp.StatusCode, "image too small: %d bytes", len(data))
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", imageURL, err)
	}

	return data, contentType, nil
}

// downloadTimeout reports an expired per-download deadline as a retryable network error
func (c *Client) downloadTimeout(ctx, dctx context.Context, err error) error {
	if ctx.Err() == nil && errors.Is(dctx.Err(), context.DeadlineExceeded) {
		return errs.New(errs.ErrorTypeNetwork, 0, "download timed out after %s", c.opts.DownloadTimeout)
	}
	return err
}
