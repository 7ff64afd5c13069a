package downloader

import (
	"bytes"
	"image"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	errs "imgdataset/pkg/errors"
)

// ImageInfo describes a decoded image
type ImageInfo struct {
	Format string
	Ext    string
	Width  int
	Height int
}

// Validator checks downloaded bytes before they are stored
type Validator struct {
	// Decode fully decodes each image; when false only the header is read
	Decode    bool
	MinWidth  int
	MinHeight int
}

var formatExtensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"bmp":  ".bmp",
	"tiff": ".tiff",
	"webp": ".webp",
}

// Validate decodes data and enforces the minimum dimensions
func (v Validator) Validate(data []byte) (*ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errs.New(errs.ErrorTypeInvalidImage, 0, "not a supported image: %v", err)
	}

	if v.Decode {
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, errs.New(errs.ErrorTypeInvalidImage, 0, "corrupt %s image: %v", format, err)
		}
		bounds := img.Bounds()
		cfg.Width, cfg.Height = bounds.Dx(), bounds.Dy()
	}

	if cfg.Width < v.MinWidth || cfg.Height < v.MinHeight {
		return nil, errs.New(errs.ErrorTypeInvalidImage, 0,
			"image %dx%d below minimum %dx%d", cfg.Width, cfg.Height, v.MinWidth, v.MinHeight)
	}

	ext, ok := formatExtensions[format]
	if !ok {
		ext = "." + format
	}

	return &ImageInfo{
		Format: format,
		Ext:    ext,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// GuessExtension picks a file extension from the content type, falling back
// to the URL path and finally to .jpg
func GuessExtension(contentType, rawURL string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if format := strings.TrimPrefix(mediaType, "image/"); format != mediaType {
			if format == "jpg" || format == "pjpeg" {
				format = "jpeg"
			}
			if ext, ok := formatExtensions[format]; ok {
				return ext
			}
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(path.Ext(u.Path))
		switch ext {
		case ".jpeg", ".jpg":
			return ".jpg"
		case ".png", ".gif", ".bmp", ".webp", ".tiff":
			return ext
		}
	}

	return ".jpg"
}
