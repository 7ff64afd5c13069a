package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"imgdataset/pkg/logger"
)

// CurrentVersion is the checkpoint file format version
const CurrentVersion = 1

// Checkpoint represents the crawl state of one category
type Checkpoint struct {
	Folder          string            `json:"folder"`
	Keyword         string            `json:"keyword"`
	Destination     string            `json:"destination"`
	NextIndex       int               `json:"next_index"` // file index of the next stored image
	Offset          int               `json:"offset"`     // search position of the next page
	Pages           int               `json:"pages"`
	Downloaded      map[string]string `json:"downloaded"` // image url -> filename
	TotalDownloaded int               `json:"total_downloaded"`
	Completed       bool              `json:"completed"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Version         int               `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager for the category folder stored at
// destination. Checkpoints of equally named folders under different dataset
// roots live in separate files.
func NewManager(folder, destination string) (*Manager, error) {
	checkpointsDir, err := Directory()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(checkpointsDir, fileName(folder, destination)),
		logger:         logger.GetLogger().WithField("folder", folder),
	}, nil
}

// fileName keys a checkpoint file by folder and the absolute destination path
func fileName(folder, destination string) string {
	dest := filepath.Clean(destination)
	if abs, err := filepath.Abs(dest); err == nil {
		dest = abs
	}
	sum := sha256.Sum256([]byte(dest))
	return fmt.Sprintf("%s-%s.checkpoint.json", folder, hex.EncodeToString(sum[:6]))
}

// Directory returns the directory holding all checkpoint files
func Directory() (string, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return "", fmt.Errorf("failed to get data directory: %w", err)
	}
	return filepath.Join(dataDir, "checkpoints"), nil
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and saves a new checkpoint
func (m *Manager) Create(folder, keyword, destination string, nextIndex int) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		Folder:      folder,
		Keyword:     keyword,
		Destination: destination,
		NextIndex:   nextIndex,
		Downloaded:  make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     CurrentVersion,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint created", map[string]interface{}{
		"path": m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint; it returns nil when none exists
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Version > CurrentVersion {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", checkpoint.Version, CurrentVersion)
	}
	if checkpoint.Downloaded == nil {
		checkpoint.Downloaded = make(map[string]string)
	}

	m.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"total_downloaded": checkpoint.TotalDownloaded,
		"offset":           checkpoint.Offset,
		"completed":        checkpoint.Completed,
		"updated_at":       checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// UpdateProgress records the search position after a page was processed
func (m *Manager) UpdateProgress(checkpoint *Checkpoint, offset, pages int) error {
	checkpoint.Offset = offset
	checkpoint.Pages = pages
	return m.Save(checkpoint)
}

// RecordDownload records a stored image
func (m *Manager) RecordDownload(checkpoint *Checkpoint, url, filename string, index int) error {
	checkpoint.Downloaded[url] = filename
	checkpoint.TotalDownloaded++
	if index >= checkpoint.NextIndex {
		checkpoint.NextIndex = index + 1
	}
	return m.Save(checkpoint)
}

// MarkCompleted flags the category as fully fetched
func (m *Manager) MarkCompleted(checkpoint *Checkpoint) error {
	checkpoint.Completed = true
	return m.Save(checkpoint)
}

// IsDownloaded checks if an image URL has already been stored
func (checkpoint *Checkpoint) IsDownloaded(url string) bool {
	_, exists := checkpoint.Downloaded[url]
	return exists
}

// Matches reports whether the checkpoint belongs to the given crawl
func (checkpoint *Checkpoint) Matches(keyword, destination string) bool {
	return checkpoint.Keyword == keyword && filepath.Clean(checkpoint.Destination) == filepath.Clean(destination)
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "imgdataset")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "imgdataset")
	default:
		// XDG_DATA_HOME if set, otherwise ~/.local/share
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "imgdataset")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "imgdataset")
		}
	}

	return dataDir, nil
}
