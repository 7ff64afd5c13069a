package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"imgdataset/pkg/models"
)

// AutoOffset continues file numbering after the highest existing index
const AutoOffset = -1

// Config holds all configuration options for the dataset builder
type Config struct {
	// Dataset layout and categories
	Dataset DatasetConfig `yaml:"dataset" json:"dataset"`

	// Image search service
	Search SearchConfig `yaml:"search" json:"search"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// DatasetConfig holds the root directory and the category mapping
type DatasetConfig struct {
	Root          string                `yaml:"root" json:"root"`
	MaxNum        int                   `yaml:"max_num" json:"max_num"`
	FileIdxOffset int                   `yaml:"file_idx_offset" json:"file_idx_offset"`
	Categories    []models.CategorySpec `yaml:"categories" json:"categories"`
}

// SearchConfig holds image search configuration
type SearchConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	PageSize       int           `yaml:"page_size" json:"page_size"`
	MaxPages       int           `yaml:"max_pages" json:"max_pages"`
	SafeSearch     string        `yaml:"safe_search" json:"safe_search"`
	Filters        string        `yaml:"filters" json:"filters"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	MinFileSize         int64         `yaml:"min_file_size" json:"min_file_size"`
	MaxFileSize         int64         `yaml:"max_file_size" json:"max_file_size"`
	ValidateImages      bool          `yaml:"validate_images" json:"validate_images"`
	MinWidth            int           `yaml:"min_width" json:"min_width"`
	MinHeight           int           `yaml:"min_height" json:"min_height"`
}

// OutputConfig holds output configuration
type OutputConfig struct {
	WriteMetadata   bool `yaml:"write_metadata" json:"write_metadata"`
	SkipDuplicates  bool `yaml:"skip_duplicates" json:"skip_duplicates"`
	KeepCheckpoints bool `yaml:"keep_checkpoints" json:"keep_checkpoints"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Root:          "dataset",
			MaxNum:        500,
			FileIdxOffset: 0,
		},
		Search: SearchConfig{
			BaseURL:        "https://www.bing.com",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			PageSize:       35,
			MaxPages:       60,
			SafeSearch:     "off",
			RequestTimeout: 20 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
			BackoffMultiplier: 2.0,
			MaxRetries:        3,
			RetryDelay:        2 * time.Second,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 4,
			DownloadTimeout:     30 * time.Second,
			MinFileSize:         0,
			MaxFileSize:         0, // 0 means no limit
			ValidateImages:      true,
		},
		Output: OutputConfig{
			WriteMetadata:   false,
			SkipDuplicates:  true,
			KeepCheckpoints: false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ParseOffset parses a file index offset, accepting "auto"
func ParseOffset(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "auto" {
		return AutoOffset, nil
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid file index offset %q: %w", s, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("file index offset must not be negative, got %d", val)
	}
	return val, nil
}

// ParseCategories parses a list of "folder=keyword" entries
func ParseCategories(entries []string) ([]models.CategorySpec, error) {
	var categories []models.CategorySpec
	var errs []error
	for _, entry := range entries {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		spec, err := models.ParseCategory(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		categories = append(categories, spec)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return categories, nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if root := os.Getenv("IMGDATASET_ROOT"); root != "" {
		c.Dataset.Root = root
	}
	if maxNum := os.Getenv("IMGDATASET_MAX_NUM"); maxNum != "" {
		val, err := strconv.Atoi(maxNum)
		if err != nil {
			return fmt.Errorf("invalid IMGDATASET_MAX_NUM: %w", err)
		}
		c.Dataset.MaxNum = val
	}
	if offset := os.Getenv("IMGDATASET_FILE_IDX_OFFSET"); offset != "" {
		val, err := ParseOffset(offset)
		if err != nil {
			return fmt.Errorf("invalid IMGDATASET_FILE_IDX_OFFSET: %w", err)
		}
		c.Dataset.FileIdxOffset = val
	}
	// Categories are separated by ';' because keywords contain spaces and commas
	if categories := os.Getenv("IMGDATASET_CATEGORIES"); categories != "" {
		parsed, err := ParseCategories(strings.Split(categories, ";"))
		if err != nil {
			return fmt.Errorf("invalid IMGDATASET_CATEGORIES: %w", err)
		}
		c.Dataset.Categories = parsed
	}

	if baseURL := os.Getenv("IMGDATASET_SEARCH_URL"); baseURL != "" {
		c.Search.BaseURL = baseURL
	}
	if userAgent := os.Getenv("IMGDATASET_USER_AGENT"); userAgent != "" {
		c.Search.UserAgent = userAgent
	}

	if rpm := os.Getenv("IMGDATASET_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if concurrent := os.Getenv("IMGDATASET_CONCURRENT_DOWNLOADS"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}

	if metadata := os.Getenv("IMGDATASET_WRITE_METADATA"); metadata != "" {
		c.Output.WriteMetadata = strings.ToLower(metadata) == "true"
	}

	if logLevel := os.Getenv("IMGDATASET_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("IMGDATASET_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile returns the first config file found in the standard
// locations, or "" if there is none
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".imgdataset.yaml",
		".imgdataset.yml",
		"imgdataset.yaml",
		filepath.Join(home, ".config", "imgdataset", "config.yaml"),
		filepath.Join(home, ".config", "imgdataset", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Dataset.Root) == "" {
		errs = append(errs, errors.New("dataset root directory is required"))
	}
	if c.Dataset.MaxNum <= 0 {
		errs = append(errs, errors.New("max_num must be positive"))
	}
	if c.Dataset.FileIdxOffset < AutoOffset {
		errs = append(errs, errors.New("file_idx_offset must be zero, positive or auto"))
	}
	if err := models.ValidateCategories(c.Dataset.Categories); err != nil {
		errs = append(errs, err)
	}

	if c.Search.BaseURL == "" {
		errs = append(errs, errors.New("search base URL is required"))
	}
	if c.Search.PageSize <= 0 || c.Search.PageSize > 150 {
		errs = append(errs, errors.New("search page size must be between 1 and 150"))
	}
	if c.Search.MaxPages <= 0 {
		errs = append(errs, errors.New("search max pages must be positive"))
	}
	validSafeSearch := map[string]bool{"off": true, "moderate": true, "strict": true}
	if !validSafeSearch[strings.ToLower(c.Search.SafeSearch)] {
		errs = append(errs, errors.New("safe_search must be off, moderate or strict"))
	}
	if c.Search.RequestTimeout <= 0 {
		errs = append(errs, errors.New("search request timeout must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 16 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 16"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.MinFileSize < 0 || c.Download.MaxFileSize < 0 {
		errs = append(errs, errors.New("file size limits cannot be negative"))
	}
	if c.Download.MaxFileSize > 0 && c.Download.MinFileSize > c.Download.MaxFileSize {
		errs = append(errs, errors.New("min file size exceeds max file size"))
	}
	if c.Download.MinWidth < 0 || c.Download.MinHeight < 0 {
		errs = append(errs, errors.New("minimum image dimensions cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Numeric flags are taken as given so that Validate can reject bad values.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) error {
	if root, ok := flags["root"].(string); ok && root != "" {
		c.Dataset.Root = root
	}
	if maxNum, ok := flags["max-num"].(int); ok {
		c.Dataset.MaxNum = maxNum
	}
	if offset, ok := flags["offset"].(string); ok && offset != "" {
		val, err := ParseOffset(offset)
		if err != nil {
			return err
		}
		c.Dataset.FileIdxOffset = val
	}
	if entries, ok := flags["category"].([]string); ok && len(entries) > 0 {
		categories, err := ParseCategories(entries)
		if err != nil {
			return err
		}
		c.Dataset.Categories = categories
	}
	if concurrent, ok := flags["concurrent"].(int); ok {
		c.Download.ConcurrentDownloads = concurrent
	}
	if timeout, ok := flags["download-timeout"].(int); ok {
		c.Download.DownloadTimeout = time.Duration(timeout) * time.Second
	}
	if rpm, ok := flags["rate-limit"].(int); ok {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if retries, ok := flags["max-retries"].(int); ok {
		c.RateLimit.MaxRetries = retries
	}
	if metadata, ok := flags["metadata"].(bool); ok {
		c.Output.WriteMetadata = metadata
	}
	if keep, ok := flags["keep-checkpoints"].(bool); ok {
		c.Output.KeepCheckpoints = keep
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".imgdataset.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.MergeCommandLineFlags(flags); err != nil {
		return nil, fmt.Errorf("invalid command line flags: %w", err)
	}

	if len(config.Dataset.Categories) == 0 {
		config.Dataset.Categories = models.DefaultCategories()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
