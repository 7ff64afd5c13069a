package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileName is the name of the metadata file inside a category directory
const FileName = "metadata.json"

// ImageMetadata represents the metadata of one stored image
type ImageMetadata struct {
	Filename   string `json:"filename"`
	URL        string `json:"url"`
	SourcePage string `json:"source_page,omitempty"`
	Title      string `json:"title,omitempty"`

	Format   string `json:"format,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	FileSize int64  `json:"file_size"`
	SHA256   string `json:"sha256"`

	DownloadedAt time.Time `json:"downloaded_at"`
}

// Index is the content of a metadata.json file
type Index struct {
	Folder    string          `json:"folder"`
	Keyword   string          `json:"keyword"`
	UpdatedAt time.Time       `json:"updated_at"`
	Images    []ImageMetadata `json:"images"`
}

// Writer accumulates records for one category directory
type Writer struct {
	path  string
	index Index
	byID  map[string]int // filename -> position in index.Images
	mu    sync.Mutex
}

// Open loads the metadata file in dir, if any, so that new records are merged
// into it. Records whose image file no longer exists are dropped.
func Open(dir, folder, keyword string) (*Writer, error) {
	w := &Writer{
		path: filepath.Join(dir, FileName),
		index: Index{
			Folder:  folder,
			Keyword: keyword,
		},
		byID: make(map[string]int),
	}

	existing, err := Load(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if existing != nil {
		for _, rec := range existing.Images {
			if _, err := os.Stat(filepath.Join(dir, rec.Filename)); err != nil {
				continue
			}
			w.add(rec)
		}
	}

	return w, nil
}

// Add records an image, replacing any record with the same filename
func (w *Writer) Add(rec ImageMetadata) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.add(rec)
}

func (w *Writer) add(rec ImageMetadata) {
	if pos, ok := w.byID[rec.Filename]; ok {
		w.index.Images[pos] = rec
		return
	}
	w.byID[rec.Filename] = len(w.index.Images)
	w.index.Images = append(w.index.Images, rec)
}

// Len returns the number of records
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.index.Images)
}

// Path returns the metadata file path
func (w *Writer) Path() string {
	return w.path
}

// Flush writes the metadata file atomically, sorted by filename
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	images := make([]ImageMetadata, len(w.index.Images))
	copy(images, w.index.Images)
	sort.Slice(images, func(i, j int) bool { return images[i].Filename < images[j].Filename })

	out := w.index
	out.Images = images
	out.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tempPath := w.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := os.Rename(tempPath, w.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace metadata file: %w", err)
	}

	return nil
}

// Load reads the metadata file of a category directory
func Load(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &index, nil
}

// GetAspectRatio returns the aspect ratio as a string
func (m *ImageMetadata) GetAspectRatio() string {
	if m.Width == 0 || m.Height == 0 {
		return "unknown"
	}

	ratio := float64(m.Width) / float64(m.Height)

	switch {
	case ratio > 1.7 && ratio < 1.8:
		return "16:9"
	case ratio > 1.3 && ratio < 1.4:
		return "4:3"
	case ratio > 0.9 && ratio < 1.1:
		return "1:1"
	case ratio > 0.55 && ratio < 0.57:
		return "9:16"
	case ratio > 0.74 && ratio < 0.76:
		return "3:4"
	default:
		return fmt.Sprintf("%.2f:1", ratio)
	}
}
