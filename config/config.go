// Package config holds the TOML-backed configuration surface: Icache set
// enables, Dcache write policy, Bcache sizing, the AMASK override, and
// logging settings. A single struct with nested, toml-tagged
// sections, a DefaultConfig constructor, and a Load that falls back to
// defaults when the file is absent. Of these options only
// icache_enable_sets is read by another package (cmd/ev6core passes it
// to icache.New); the others are loaded and saved but not consulted
// anywhere in this module.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration document.
type Config struct {
	// Cache holds the options the emulated CPU's cache hierarchy
	// consults.
	Cache struct {
		// ICacheEnableSets is a 2-bit mask selecting which of the two
		// Icache sets are in use, mirroring IPR ic_ctl.ic_en.
		ICacheEnableSets uint8 `toml:"icache_enable_sets"`
		// DcacheWriteback records write-back (true) vs write-through
		// (false) policy. The dcache package is always write-back and
		// does not read it.
		DcacheWriteback bool `toml:"dcache_writeback"`
		// BcacheSize is the secondary (Bcache) size in bytes; must be a
		// power of two. Nothing in this module reads it.
		BcacheSize uint64 `toml:"bcache_size"`
		// AmaskBits is an override for the architectural-capability mask
		// the AMASK IPR reports. Nothing in this module reads it or
		// copies it into cpu.IPRSet.
		AmaskBits uint64 `toml:"amask_bits"`
	} `toml:"cache"`

	// Log holds logging settings. Nothing in this module reads them; the
	// Cbox mailbox and VHDX handle loggers discard output unless a
	// caller assigns their Logger field.
	Log struct {
		Verbose    bool   `toml:"verbose"`
		OutputFile string `toml:"output_file"`
	} `toml:"log"`
}

// DefaultConfig returns a configuration with default values: both Icache
// sets enabled, write-back Dcache, a 2 MiB Bcache, and the base AMASK
// (no extension bits reported) with logging off.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Cache.ICacheEnableSets = 0x3
	cfg.Cache.DcacheWriteback = true
	cfg.Cache.BcacheSize = 2 * 1024 * 1024
	cfg.Cache.AmaskBits = 0

	cfg.Log.Verbose = false
	cfg.Log.OutputFile = ""

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "ev6core")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "ev6core")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// GetLogPath returns the platform-specific log directory path.
func GetLogPath() string {
	var logDir string

	switch runtime.GOOS {
	case "windows":
		logDir = os.Getenv("APPDATA")
		if logDir == "" {
			logDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		logDir = filepath.Join(logDir, "ev6core", "logs")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "logs"
		}
		logDir = filepath.Join(homeDir, ".local", "share", "ev6core", "logs")

	default:
		return "logs"
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "logs"
	}

	return logDir
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file, returning
// DefaultConfig() unmodified when the file does not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("config: failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- caller-controlled config path
	if err != nil {
		return fmt.Errorf("config: failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("config: failed to close config file: %w", closeErr)
		}
	}()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("config: failed to encode config: %w", err)
	}

	return nil
}
