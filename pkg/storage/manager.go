package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrDuplicate is returned by Store when identical content is already stored
	ErrDuplicate = errors.New("duplicate image content")
	// ErrQuotaReached is returned by Store once the quota has been used up
	ErrQuotaReached = errors.New("image quota reached")
)

// imageExtensions lists the file types considered part of the dataset
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
}

// StoredFile describes a file written by Store
type StoredFile struct {
	Index    int
	Filename string
	Path     string
	SHA256   string
	Size     int64
}

// Option configures a Manager
type Option func(*Manager)

// WithDedup toggles content-hash duplicate detection
func WithDedup(enabled bool) Option {
	return func(m *Manager) { m.dedup = enabled }
}

// Manager handles indexed file storage and duplicate detection for one directory
type Manager struct {
	outputDir string
	hashes    map[string]string // sha256 -> filename
	files     map[string]string // filename -> sha256
	maxIndex  int
	nextIndex int
	quota     int
	stored    int
	dedup     bool
	mu        sync.RWMutex
}

// NewManager creates a new storage manager
func NewManager(outputDir string, opts ...Option) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		hashes:    make(map[string]string),
		files:     make(map[string]string),
		dedup:     true,
	}
	for _, opt := range opts {
		opt(manager)
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}
	manager.nextIndex = manager.maxIndex + 1

	return manager, nil
}

// scanExistingFiles records the highest numeric index and the content hashes
// of the images already in the directory
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !imageExtensions[ext] {
			continue
		}

		if idx, err := strconv.Atoi(strings.TrimSuffix(name, filepath.Ext(name))); err == nil && idx > m.maxIndex {
			m.maxIndex = idx
		}

		if m.dedup {
			sum, err := hashFile(filepath.Join(m.outputDir, name))
			if err != nil {
				return err
			}
			m.remember(sum, name)
		}
	}

	return nil
}

// StartAfter makes the next stored file use index offset+1.
// A negative offset continues after the highest existing index.
func (m *Manager) StartAfter(offset int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if offset < 0 {
		offset = m.maxIndex
	}
	m.nextIndex = offset + 1
}

// SetQuota limits how many files Store writes; zero means unlimited
func (m *Manager) SetQuota(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota = n
}

// IsDuplicate reports whether content with the given hash is already stored
func (m *Manager) IsDuplicate(sum string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.hashes[sum]
	return ok
}

// Store writes data under the next free index.
// Indices are handed out only to files that were actually written, so the
// sequence has no gaps even when writes fail.
func (m *Manager) Store(data []byte, ext string) (*StoredFile, error) {
	sum := Hash(data)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 && m.stored >= m.quota {
		return nil, ErrQuotaReached
	}
	if m.dedup {
		if existing, ok := m.hashes[sum]; ok {
			return nil, fmt.Errorf("%w: same as %s", ErrDuplicate, existing)
		}
	}

	index := m.nextIndex
	path, size, err := m.save(bytes.NewReader(data), index, ext)
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(path)
	m.nextIndex++
	m.stored++
	if index > m.maxIndex {
		m.maxIndex = index
	}
	if m.dedup {
		m.forget(filename)
		m.remember(sum, filename)
	}

	return &StoredFile{
		Index:    index,
		Filename: filename,
		Path:     path,
		SHA256:   sum,
		Size:     size,
	}, nil
}

func (m *Manager) remember(sum, filename string) {
	if _, ok := m.hashes[sum]; !ok {
		m.hashes[sum] = filename
	}
	m.files[filename] = sum
}

// forget drops the hash of a file that is about to hold other content.
// Another file with the same content keeps the hash alive.
func (m *Manager) forget(filename string) {
	sum, ok := m.files[filename]
	if !ok {
		return
	}
	delete(m.files, filename)
	if m.hashes[sum] != filename {
		return
	}
	delete(m.hashes, sum)
	for name, other := range m.files {
		if other == sum {
			m.hashes[sum] = name
			break
		}
	}
}

// save writes r to the file for index using a temporary file and an atomic rename
func (m *Manager) save(r io.Reader, index int, ext string) (string, int64, error) {
	filename := filepath.Join(m.outputDir, FileName(index, ext))

	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", 0, fmt.Errorf("failed to save image data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return filename, n, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// MaxIndex returns the highest numeric index present in the directory
func (m *Manager) MaxIndex() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxIndex
}

// NextIndex returns the index the next stored file will get
func (m *Manager) NextIndex() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextIndex
}

// StoredCount returns the number of files written by this manager
func (m *Manager) StoredCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stored
}

// FileName formats a dataset file name, e.g. FileName(1, ".jpg") == "000001.jpg"
func FileName(index int, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%06d%s", index, strings.ToLower(ext))
}

// Hash returns the hex sha256 of data
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
