package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// CategorySpec maps a dataset folder to the search keyword used to fill it
type CategorySpec struct {
	Folder  string `yaml:"folder" json:"folder"`
	Keyword string `yaml:"keyword" json:"keyword"`
}

// Validate checks that the folder is a single usable path segment
func (c CategorySpec) Validate() error {
	folder := c.Folder
	if strings.TrimSpace(folder) == "" {
		return errors.New("category folder name must not be empty")
	}
	if folder == "." || folder == ".." {
		return fmt.Errorf("category folder %q is not a valid directory name", folder)
	}
	if strings.ContainsAny(folder, `/\`) || filepath.Base(folder) != folder {
		return fmt.Errorf("category folder %q must be a single path segment", folder)
	}
	if strings.ContainsRune(folder, 0) {
		return fmt.Errorf("category folder %q contains a NUL byte", folder)
	}
	if strings.TrimSpace(c.Keyword) == "" {
		return fmt.Errorf("category %q has an empty search keyword", folder)
	}
	return nil
}

// ValidateCategories validates every category and folder uniqueness
func ValidateCategories(categories []CategorySpec) error {
	var errs []error
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[c.Folder] {
			errs = append(errs, fmt.Errorf("duplicate category folder %q", c.Folder))
		}
		seen[c.Folder] = true
	}
	return errors.Join(errs...)
}

// ParseCategory parses "folder=keyword"
func ParseCategory(s string) (CategorySpec, error) {
	folder, keyword, ok := strings.Cut(s, "=")
	if !ok {
		return CategorySpec{}, fmt.Errorf("invalid category %q, expected folder=keyword", s)
	}
	spec := CategorySpec{
		Folder:  strings.TrimSpace(folder),
		Keyword: strings.TrimSpace(keyword),
	}
	return spec, spec.Validate()
}

// DefaultCategories is the category set used when nothing else is configured
func DefaultCategories() []CategorySpec {
	return []CategorySpec{
		{Folder: "paper_cup", Keyword: "paper cup isolated white background"},
		{Folder: "plastic_bottle", Keyword: "plastic bottle isolated white background"},
		{Folder: "aluminum_can", Keyword: "aluminum can isolated white background"},
		{Folder: "cardboard_box", Keyword: "cardboard box isolated white background"},
	}
}

// FetchRequest asks a crawler for up to MaxCount images of Keyword
type FetchRequest struct {
	Keyword     string
	Destination string
	MaxCount    int
	// StartIndex is the file index offset; new files are numbered from
	// StartIndex+1. A negative value continues after the highest existing index.
	StartIndex int
}

// FetchSummary describes what a crawler did for one request
type FetchSummary struct {
	Keyword     string        `json:"keyword"`
	Destination string        `json:"destination"`
	Requested   int           `json:"requested"`
	Downloaded  int           `json:"downloaded"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Pages       int           `json:"pages"`
	FirstIndex  int           `json:"first_index"`
	Duration    time.Duration `json:"duration"`
}
