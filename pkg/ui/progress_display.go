package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay shows the progress of one category on a single line
type ProgressDisplay struct {
	mu              sync.Mutex
	folder          string
	requested       int
	downloadedCount int
	skipped         int
	errors          int
	page            int
	startTime       time.Time
	bytesDownloaded int64
	interactive     bool
	isDebug         bool
}

// NewProgressDisplay creates a new progress display
func NewProgressDisplay(folder string, requested int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		folder:      folder,
		requested:   requested,
		startTime:   time.Now(),
		interactive: IsInteractive(),
		isDebug:     debug,
	}
}

// ScanningPage marks the start of a result page
func (p *ProgressDisplay) ScanningPage(page, offset int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = page
	if p.isDebug {
		printf("\n%s Scanning page %d (offset %d)...\n", Magenta("→"), page, offset)
		return
	}
	p.printProgress()
}

// CompleteDownload marks a stored image
func (p *ProgressDisplay) CompleteDownload(filename string, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.downloadedCount++
	p.bytesDownloaded += size

	if p.isDebug {
		printf("%s %s • %s\n", Green("✓"), filename, formatBytes(size))
		return
	}
	p.printProgress()
}

// SkipDownload marks an image skipped as a duplicate
func (p *ProgressDisplay) SkipDownload(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipped++
	if p.isDebug {
		printf("%s duplicate %s\n", Dim("↷"), url)
	}
}

// FailDownload marks a failed image
func (p *ProgressDisplay) FailDownload(url string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errors++
	if p.isDebug {
		printf("%s Failed: %s - %v\n", Red("✗"), url, err)
		return
	}
	p.printProgress()
}

// printProgress redraws the progress line; non-interactive output only gets the final summary
func (p *ProgressDisplay) printProgress() {
	if !p.interactive {
		return
	}

	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.downloadedCount) / elapsed.Minutes()
	}

	line := fmt.Sprintf("%s [%s] %d/%d • page %d • %.1f/min • %s • %s",
		Cyan(p.folder),
		progressBar(p.downloadedCount, p.requested, 20),
		p.downloadedCount,
		p.requested,
		p.page,
		rate,
		formatBytes(p.bytesDownloaded),
		p.calculateETA(),
	)

	if p.errors > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.errors)))
	}

	width := TerminalWidth(120)
	printf("\r%s\r%s", strings.Repeat(" ", width-1), line)
}

// Complete prints the category summary
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	if p.interactive && !p.isDebug {
		printf("\n")
	}

	printf("%s %s: %d/%d images in %s (%s)\n",
		Green("✓"),
		p.folder,
		p.downloadedCount,
		p.requested,
		formatDuration(elapsed),
		formatBytes(p.bytesDownloaded),
	)
	if p.skipped > 0 {
		printf("  %s %d duplicates skipped\n", Dim("•"), p.skipped)
	}
	if p.errors > 0 {
		printf("  %s %d downloads failed\n", Dim("•"), p.errors)
	}
}

// calculateETA estimates time remaining
func (p *ProgressDisplay) calculateETA() string {
	if p.downloadedCount == 0 {
		return "calculating..."
	}

	remaining := p.requested - p.downloadedCount
	if remaining <= 0 {
		return "done"
	}

	rate := float64(p.downloadedCount) / time.Since(p.startTime).Seconds()
	if rate == 0 {
		return "calculating..."
	}

	return formatDuration(time.Duration(float64(remaining)/rate) * time.Second)
}

func progressBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
