package logger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// LogSearchPage logs one page of search results
func LogSearchPage(keyword string, offset, hits int) {
	GetLogger().DebugWithFields("Search page fetched", map[string]interface{}{
		"keyword": keyword,
		"offset":  offset,
		"hits":    hits,
	})
}

// LogDownload logs the outcome of a single image download
func LogDownload(folder, filename, url string, success bool, err error) {
	logger := GetLogger().WithFields(map[string]interface{}{
		"folder":   folder,
		"filename": filename,
		"url":      url,
		"success":  success,
	})

	if err != nil {
		logger.WithError(err).Warn("Image download failed")
	} else if success {
		logger.Debug("Image stored")
	} else {
		logger.Debug("Image skipped")
	}
}

// LogRateLimit logs rate limiting events
func LogRateLimit(endpoint string, retryAfter int) {
	GetLogger().WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogCategoryProgress logs how far a category has come
func LogCategoryProgress(folder string, downloaded, requested int) {
	percentage := 0.0
	if requested > 0 {
		percentage = float64(downloaded) / float64(requested) * 100
	}

	GetLogger().WithFields(map[string]interface{}{
		"folder":     folder,
		"downloaded": downloaded,
		"requested":  requested,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Category progress")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	logger := GetLogger().WithField("component", component)
	if len(config) > 0 {
		logger = logger.WithFields(config)
	}
	logger.Debug("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Debug("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
