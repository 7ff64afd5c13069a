package bing

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the base URL for Bing
	DefaultBaseURL = "https://www.bing.com"

	// AsyncEndpoint returns result pages as HTML fragments
	AsyncEndpoint = "/images/async"

	// DefaultPageSize is the number of hits requested per page
	DefaultPageSize = 35

	// MaxPageSize is the largest count Bing honours
	MaxPageSize = 150
)

// safeSearchValues maps config values to Bing's adlt parameter
var safeSearchValues = map[string]string{
	"off":      "off",
	"moderate": "moderate",
	"strict":   "strict",
}

// SearchURL constructs the URL for one page of image results
func SearchURL(baseURL, keyword string, offset, count int, safeSearch, filters string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if count <= 0 {
		count = DefaultPageSize
	} else if count > MaxPageSize {
		count = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	params := url.Values{}
	params.Set("q", keyword)
	params.Set("first", strconv.Itoa(offset))
	params.Set("count", strconv.Itoa(count))
	if adlt, ok := safeSearchValues[strings.ToLower(safeSearch)]; ok {
		params.Set("adlt", adlt)
	}
	if filters != "" {
		params.Set("qft", filters)
	}

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(baseURL, "/"), AsyncEndpoint, params.Encode())
}
