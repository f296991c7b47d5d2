package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/KevoDB/kbz/pkg/bitstream"
	"github.com/KevoDB/kbz/pkg/block"
	"github.com/KevoDB/kbz/pkg/bwt"
	"github.com/KevoDB/kbz/pkg/bzip2"
	"github.com/KevoDB/kbz/pkg/huffman"
)

const (
	DefaultConfigFileName = "kbz.json"
	CurrentConfigVersion  = 1

	// EnvPrefix starts every environment override
	EnvPrefix = "KBZ_"
)

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrConfigNotFound    = errors.New("config file not found")
	ErrInvalidConfigFile = errors.New("invalid config file")
)

type Config struct {
	Version int `json:"version"`

	// Compression configuration
	BlockSize         int  `json:"block_size"`
	WorkFactor        int  `json:"work_factor"`
	Workers           int  `json:"workers"`
	HuffmanIterations int  `json:"huffman_iterations"`
	WriteIndex        bool `json:"write_index"`

	// Decompression configuration
	ReadBufferSize  int  `json:"read_buffer_size"`
	StrictChecksums bool `json:"strict_checksums"`

	// Output configuration
	Verbosity int `json:"verbosity"`

	mu sync.RWMutex
}

// NewDefaultConfig creates a Config with recommended default values
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,

		BlockSize:         block.MaxFactor,
		WorkFactor:        bwt.DefaultWorkFactor,
		Workers:           runtime.GOMAXPROCS(0),
		HuffmanIterations: huffman.DefaultIterations,

		ReadBufferSize: bitstream.DefaultChunkSize, // 1MB
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Version <= 0 {
		return fmt.Errorf("%w: invalid version %d", ErrInvalidConfig, c.Version)
	}

	if !block.ValidFactor(c.BlockSize) {
		return fmt.Errorf("%w: block size must be between 1 and 9", ErrInvalidConfig)
	}

	if c.WorkFactor < 1 || c.WorkFactor > bwt.MaxWorkFactor {
		return fmt.Errorf("%w: work factor must be between 1 and %d", ErrInvalidConfig, bwt.MaxWorkFactor)
	}

	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}

	if c.HuffmanIterations <= 0 {
		return fmt.Errorf("%w: Huffman iterations must be positive", ErrInvalidConfig)
	}

	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("%w: read buffer size must be positive", ErrInvalidConfig)
	}

	return nil
}

// LoadConfigFromFile loads a configuration saved with SaveConfig. Fields missing
// from the file keep their default values.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfigFile, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves the configuration to path, replacing any existing file atomically
func (c *Config) SaveConfig(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := path + ".tmp"

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename config: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from KBZ_BLOCK_SIZE, KBZ_WORK_FACTOR, KBZ_WORKERS,
// KBZ_ITERATIONS, KBZ_READ_BUFFER, KBZ_STRICT and KBZ_INDEX.
func (c *Config) ApplyEnv() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ints := []struct {
		name  string
		field *int
	}{
		{"BLOCK_SIZE", &c.BlockSize},
		{"WORK_FACTOR", &c.WorkFactor},
		{"WORKERS", &c.Workers},
		{"ITERATIONS", &c.HuffmanIterations},
		{"READ_BUFFER", &c.ReadBufferSize},
	}
	for _, v := range ints {
		s, ok := os.LookupEnv(EnvPrefix + v.name)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q is not a number", ErrInvalidConfig, EnvPrefix, v.name, s)
		}
		*v.field = n
	}

	bools := []struct {
		name  string
		field *bool
	}{
		{"STRICT", &c.StrictChecksums},
		{"INDEX", &c.WriteIndex},
	}
	for _, v := range bools {
		s, ok := os.LookupEnv(EnvPrefix + v.name)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q is not a boolean", ErrInvalidConfig, EnvPrefix, v.name, s)
		}
		*v.field = b
	}

	return nil
}

// Update applies the given function to modify the configuration
func (c *Config) Update(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// Options converts the configuration into codec options.
func (c *Config) Options() []bzip2.Option {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return []bzip2.Option{
		bzip2.WithBlockSize(c.BlockSize),
		bzip2.WithWorkFactor(c.WorkFactor),
		bzip2.WithWorkers(c.Workers),
		bzip2.WithIterations(c.HuffmanIterations),
		bzip2.WithReadBufferSize(c.ReadBufferSize),
		bzip2.WithStrictChecksums(c.StrictChecksums),
	}
}
