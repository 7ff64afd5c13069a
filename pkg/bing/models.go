package bing

import (
	"strconv"
	"strings"
)

// ImageResult is one hit on a result page
type ImageResult struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	SourcePage   string `json:"source_page,omitempty"`
	Title        string `json:"title,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

// imageMeta is the JSON carried in the m attribute of a result anchor
type imageMeta struct {
	MURL  string  `json:"murl"`
	TURL  string  `json:"turl"`
	PURL  string  `json:"purl"`
	Title string  `json:"t"`
	MW    flexInt `json:"mw"`
	MH    flexInt `json:"mh"`
}

// flexInt accepts both numbers and numeric strings
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.Atoi(strings.SplitN(s, ".", 2)[0])
	if err != nil {
		// Dimensions are informational; ignore garbage
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}

func (m imageMeta) toResult() ImageResult {
	return ImageResult{
		URL:          strings.TrimSpace(m.MURL),
		ThumbnailURL: m.TURL,
		SourcePage:   m.PURL,
		Title:        strings.TrimSpace(m.Title),
		Width:        int(m.MW),
		Height:       int(m.MH),
	}
}

// dimensions parses Bing's "1200 x 800 · jpeg" caption into width and height
func dimensions(caption string) (int, int) {
	caption = strings.ReplaceAll(caption, "×", "x")
	parts := strings.SplitN(caption, "x", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0
	}
	h, err := strconv.Atoi(leadingDigits(strings.TrimSpace(parts[1])))
	if err != nil {
		return 0, 0
	}
	return w, h
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}
