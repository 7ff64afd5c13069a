package ui

import (
	"fmt"
	"time"
)

// CategoryResult is one line of the build summary
type CategoryResult struct {
	Folder     string
	Downloaded int
	Requested  int
	Failed     int
	Duration   time.Duration
}

// StatusTracker keeps track of the build across categories
type StatusTracker struct {
	TotalCategories int
	Current         int
	Results         []CategoryResult
	StartTime       time.Time
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker(totalCategories int) *StatusTracker {
	return &StatusTracker{
		TotalCategories: totalCategories,
		StartTime:       time.Now(),
	}
}

// StartCategory prints the category header
func (st *StatusTracker) StartCategory(folder, keyword string) {
	st.Current++
	printf("\n%s %s %s\n",
		Magenta(fmt.Sprintf("[%d/%d]", st.Current, st.TotalCategories)),
		Cyan(folder),
		Dim(fmt.Sprintf("%q", keyword)),
	)
}

// FinishCategory records a finished category
func (st *StatusTracker) FinishCategory(result CategoryResult) {
	st.Results = append(st.Results, result)
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetDownloadedCount returns the number of images stored across categories
func (st *StatusTracker) GetDownloadedCount() int {
	total := 0
	for _, r := range st.Results {
		total += r.Downloaded
	}
	return total
}

// PrintSummary prints the totals of the build
func (st *StatusTracker) PrintSummary() {
	printf("\n%s %d images in %d/%d categories • %s\n",
		Green("[DATASET READY]"),
		st.GetDownloadedCount(),
		len(st.Results),
		st.TotalCategories,
		formatDuration(st.GetElapsedTime()),
	)
	for _, r := range st.Results {
		line := fmt.Sprintf("  %s %s: %d/%d", Dim("•"), r.Folder, r.Downloaded, r.Requested)
		if r.Failed > 0 {
			line += " " + Yellow(fmt.Sprintf("(%d failed)", r.Failed))
		}
		printf("%s\n", line)
	}
}
