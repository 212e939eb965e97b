// Package config holds the debugger settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/gbadbg/control"
	"github.com/sarchlab/gbadbg/emu"
	"github.com/sarchlab/gbadbg/memview"
	"github.com/sarchlab/gbadbg/video"
)

// CurrentVersion is the config format written by SaveConfig.
const CurrentVersion = "1.0.0"

// SupportedVersions is the constraint a loaded config must satisfy.
const SupportedVersions = "^1"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the tunable values of a debug session.
type Config struct {
	// Version is the semantic version of the config format.
	Version string `json:"version" yaml:"version"`

	// MaxRunIterations caps a run to breakpoint. Default: 100000.
	MaxRunIterations uint64 `json:"max_run_iterations" yaml:"max_run_iterations"`

	// PaletteChannelOrder names the byte layout of a palette entry:
	// bgr, rgb, xrgb or xbgr. Default: bgr.
	PaletteChannelOrder string `json:"palette_channel_order" yaml:"palette_channel_order"`

	// FrameInstructions is the number of engine steps in one frame of the
	// reference engine.
	FrameInstructions int `json:"frame_instructions" yaml:"frame_instructions"`

	// CacheSize is the memory read cache size in bytes.
	CacheSize int `json:"cache_size" yaml:"cache_size"`

	// CacheAssociativity is the number of ways per set.
	CacheAssociativity int `json:"cache_associativity" yaml:"cache_associativity"`

	// CacheBlockSize is the cache block size in bytes.
	CacheBlockSize int `json:"cache_block_size" yaml:"cache_block_size"`

	// LogVerbosity is the logr verbosity of the CLI. Default: 0.
	LogVerbosity int `json:"log_verbosity" yaml:"log_verbosity"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() *Config {
	cache := memview.DefaultCacheConfig()
	return &Config{
		Version:             CurrentVersion,
		MaxRunIterations:    control.DefaultMaxRunIterations,
		PaletteChannelOrder: "bgr",
		FrameInstructions:   emu.DefaultFrameInstructions,
		CacheSize:           cache.Size,
		CacheAssociativity:  cache.Associativity,
		CacheBlockSize:      cache.BlockSize,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadConfig loads a Config from a JSON file, or a YAML file when the path
// ends in .yaml or .yml. Fields missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to path in the format its extension selects.
func (c *Config) SaveConfig(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the format version and every value.
func (c *Config) Validate() error {
	v, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("%w: version %q: %w", ErrInvalidConfig, c.Version, err)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: version %s does not satisfy %s",
			ErrInvalidConfig, v, SupportedVersions)
	}

	if c.MaxRunIterations == 0 {
		return fmt.Errorf("%w: max_run_iterations must be > 0", ErrInvalidConfig)
	}
	if _, err := video.ParseChannelOrder(c.PaletteChannelOrder); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.FrameInstructions <= 0 {
		return fmt.Errorf("%w: frame_instructions must be > 0", ErrInvalidConfig)
	}
	if c.CacheBlockSize <= 0 || c.CacheBlockSize&(c.CacheBlockSize-1) != 0 {
		return fmt.Errorf("%w: cache_block_size must be a power of two", ErrInvalidConfig)
	}
	if c.CacheAssociativity <= 0 {
		return fmt.Errorf("%w: cache_associativity must be > 0", ErrInvalidConfig)
	}
	way := c.CacheAssociativity * c.CacheBlockSize
	if c.CacheSize < way || c.CacheSize%way != 0 {
		return fmt.Errorf("%w: cache_size must be a multiple of associativity * block size",
			ErrInvalidConfig)
	}
	if c.LogVerbosity < 0 {
		return fmt.Errorf("%w: log_verbosity must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// ChannelOrder returns the parsed palette channel order. Call Validate
// first; an unknown name yields the default order.
func (c *Config) ChannelOrder() video.ChannelOrder {
	order, err := video.ParseChannelOrder(c.PaletteChannelOrder)
	if err != nil {
		return video.OrderBGR
	}
	return order
}

// CacheConfig returns the memory read cache geometry.
func (c *Config) CacheConfig() memview.CacheConfig {
	return memview.CacheConfig{
		Size:          c.CacheSize,
		Associativity: c.CacheAssociativity,
		BlockSize:     c.CacheBlockSize,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
