// Package config provides functionality for managing configuration options
// for the application using a TOML file, environment variables and
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// Environment variables that override the config file.
const (
	EnvDir      = "PASSVAULT_DIR"
	EnvLogLevel = "PASSVAULT_LOG_LEVEL"
	EnvConfig   = "PASSVAULT_CONFIG"
)

// MinKDFIterations is the lowest PBKDF2 work factor a config may request.
const MinKDFIterations = 10_000

// Options holds the configuration values for the application.
type Options struct {
	// DataDir holds credentials.enc, categories.json and keys.db.
	DataDir string `toml:"data_dir"`

	// LogLevel is a zap level name.
	LogLevel string `toml:"log_level"`

	// KDFIterations is the PBKDF2 work factor used at setup and rotation.
	KDFIterations int `toml:"kdf_iterations"`

	// FailFast makes concurrent mutations fail with a busy error instead of
	// queueing.
	FailFast bool `toml:"fail_fast"`

	// MaxSecretAgeDays is the age after which the report flags a secret.
	MaxSecretAgeDays int `toml:"max_secret_age_days"`

	// AutoLockMinutes locks an idle session; zero disables it.
	AutoLockMinutes int `toml:"auto_lock_minutes"`

	// Config is the path to the config file. It is never read from the file.
	Config string `toml:"-"`
}

// MaxSecretAge returns MaxSecretAgeDays as a duration.
func (o *Options) MaxSecretAge() time.Duration {
	return time.Duration(o.MaxSecretAgeDays) * 24 * time.Hour
}

// AutoLock returns AutoLockMinutes as a duration.
func (o *Options) AutoLock() time.Duration {
	return time.Duration(o.AutoLockMinutes) * time.Minute
}

// Default returns the built-in configuration.
func Default() *Options {
	dir := ".passvault"
	if base, err := os.UserConfigDir(); err == nil {
		dir = filepath.Join(base, "passvault")
	}
	return &Options{
		DataDir:          dir,
		LogLevel:         "warn",
		KDFIterations:    100_000,
		MaxSecretAgeDays: 180,
		AutoLockMinutes:  5,
	}
}

// RegisterFlags adds the configuration flags to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "path to config file (default <dir>/config.toml)")
	flags.StringP("dir", "d", "", "vault data directory")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("fail-fast", false, "fail instead of waiting when the vault is busy")
	flags.Int("max-age-days", 0, "days after which a secret is reported as old")
}

// Parse resolves the configuration: defaults, then the TOML file, then
// environment variables, then flags explicitly set on the command line.
// flags may be nil.
func Parse(flags *pflag.FlagSet) (*Options, error) {
	options := Default()
	changed := func(name string) bool { return flags != nil && flags.Changed(name) }

	// The data dir decides where the default config file lives.
	applyDir := func() {
		if dir := os.Getenv(EnvDir); dir != "" {
			options.DataDir = dir
		}
		if changed("dir") {
			options.DataDir, _ = flags.GetString("dir")
		}
	}
	applyDir()

	path, explicit := filepath.Join(options.DataDir, "config.toml"), false
	if p := os.Getenv(EnvConfig); p != "" {
		path, explicit = p, true
	}
	if changed("config") {
		path, _ = flags.GetString("config")
		explicit = true
	}
	options.Config = path

	err := loadFile(path, options)
	if err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
		return nil, err
	}

	applyDir()
	if level := os.Getenv(EnvLogLevel); level != "" {
		options.LogLevel = level
	}
	if changed("log-level") {
		options.LogLevel, _ = flags.GetString("log-level")
	}
	if changed("fail-fast") {
		options.FailFast, _ = flags.GetBool("fail-fast")
	}
	if changed("max-age-days") {
		options.MaxSecretAgeDays, _ = flags.GetInt("max-age-days")
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

func loadFile(path string, options *Options) error {
	md, err := toml.DecodeFile(path, options)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return fmt.Errorf("error while parsing config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate checks that every option is usable.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.DataDir) == "" {
		return errors.New("config: data_dir is empty")
	}
	if _, err := zap.ParseAtomicLevel(o.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if o.KDFIterations < MinKDFIterations {
		return fmt.Errorf("config: kdf_iterations must be at least %d, got %d", MinKDFIterations, o.KDFIterations)
	}
	if o.MaxSecretAgeDays <= 0 {
		return fmt.Errorf("config: max_secret_age_days must be positive, got %d", o.MaxSecretAgeDays)
	}
	if o.AutoLockMinutes < 0 {
		return fmt.Errorf("config: auto_lock_minutes must not be negative, got %d", o.AutoLockMinutes)
	}
	return nil
}
