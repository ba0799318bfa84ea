package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional blockshot configuration file.
type Config struct {
	Backup   BackupConfig   `toml:"backup"`
	Defaults DefaultsConfig `toml:"defaults"`
	Theme    ThemeConfig    `toml:"theme"`
}

// BackupConfig describes the backup set: what to read and where to write.
type BackupConfig struct {
	Device                *string  `toml:"device"`
	BlockSizeKB           *int     `toml:"block_size_kb"`
	BackupDir             *string  `toml:"backup_dir"`
	FilePrefix            *string  `toml:"file_prefix"`
	ProgressUpdateSeconds *float64 `toml:"progress_update_seconds"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	BWLimit *string `toml:"bwlimit"`
	Catalog *bool   `toml:"catalog"`
	Log     *string `toml:"log"`
}

// ThemeConfig overrides the colors of the report commands. Values are hex
// strings such as "#a6e3a1" or ANSI color numbers.
type ThemeConfig struct {
	Green  *string `toml:"green"`
	Red    *string `toml:"red"`
	Yellow *string `toml:"yellow"`
	Mauve  *string `toml:"mauve"`
	Muted  *string `toml:"muted"`
	Bright *string `toml:"bright"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "blockshot", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. The default file is optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	return cfg, err
}

// LoadFile reads an explicitly named config file, which must exist. Unknown
// keys are rejected so that typos do not silently fall back to defaults.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}
