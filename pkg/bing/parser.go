package bing

import (
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "imgdataset/pkg/errors"
)

// ParseResults extracts image hits from a result page.
// A page without result anchors yields an empty slice, which marks the end of
// the results. A page whose anchors all carry unreadable metadata is a
// parsing error.
func ParseResults(r io.Reader) ([]ImageResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeParsing, 0, "parse html: %v", err)
	}

	var (
		results []ImageResult
		seen    = make(map[string]bool)
		anchors int
		broken  int
	)

	doc.Find("a.iusc").Each(func(_ int, s *goquery.Selection) {
		anchors++

		raw, ok := s.Attr("m")
		if !ok {
			broken++
			return
		}

		var meta imageMeta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			broken++
			return
		}

		result := meta.toResult()
		if !isHTTPURL(result.URL) {
			broken++
			return
		}
		if seen[result.URL] {
			return
		}
		seen[result.URL] = true

		if result.Width == 0 || result.Height == 0 {
			caption := s.Closest(".imgpt").Find(".img_info .nowrap").First().Text()
			result.Width, result.Height = dimensions(caption)
		}

		results = append(results, result)
	})

	if anchors > 0 && broken == anchors {
		return nil, errs.New(errs.ErrorTypeParsing, 0, "none of %d results carried image metadata", anchors)
	}

	return results, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}
