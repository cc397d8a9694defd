package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sudare/internal/buffer"
	"sudare/internal/event"
	"sudare/internal/logger"
	"sudare/internal/runner"
)

const (
	defaultBufferCapacity = buffer.DefaultCapacity
	defaultGracePeriod    = runner.DefaultGrace
	defaultQueueSize      = event.DefaultQueueSize
	defaultLogLevel       = "info"
	envPrefix             = "SUDARE"
)

// Config aggregates the supervisor's tunables.
type Config struct {
	BufferCapacity int           `mapstructure:"buffer_capacity"`
	GracePeriod    time.Duration `mapstructure:"grace_period"`
	Shell          string        `mapstructure:"shell"`
	QueueSize      int           `mapstructure:"queue_size"`
	StateDir       string        `mapstructure:"state_dir"`
	MetricsFile    string        `mapstructure:"metrics_file"`
	Log            LogConfig     `mapstructure:"log"`
	OutputLog      OutputConfig  `mapstructure:"output_log"`
}

// LogConfig controls the supervisor's own diagnostics.
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// OutputConfig controls the optional per-process output files.
type OutputConfig struct {
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Logger converts the section into logger settings.
func (c LogConfig) Logger() logger.Config {
	return logger.Config{File: c.File, Level: c.Level}
}

// Logger converts the section into output log settings.
func (c OutputConfig) Logger() logger.OutputConfig {
	return logger.OutputConfig{
		Dir:        c.Dir,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// Load builds a Config from defaults, an optional file (toml, yaml or json by
// extension) and SUDARE_* environment overrides, in increasing precedence.
// Nested keys use an underscore in the environment: SUDARE_LOG_LEVEL.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("buffer_capacity", defaultBufferCapacity)
	v.SetDefault("grace_period", defaultGracePeriod)
	v.SetDefault("shell", runner.DefaultShell)
	v.SetDefault("queue_size", defaultQueueSize)
	v.SetDefault("state_dir", defaultStateDir())
	v.SetDefault("metrics_file", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("output_log.dir", "")
	v.SetDefault("output_log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("output_log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("output_log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("output_log.compress", false)
}

// defaultStateDir is the per-user cache directory, where selections are kept.
func defaultStateDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "sudare")
}

// Validate rejects values the supervisor cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.BufferCapacity <= 0 {
		errs = append(errs, errors.New("buffer_capacity must be > 0"))
	}
	if c.GracePeriod <= 0 {
		errs = append(errs, errors.New("grace_period must be > 0"))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, errors.New("queue_size must be > 0"))
	}
	if strings.TrimSpace(c.Shell) == "" {
		errs = append(errs, errors.New("shell must not be empty"))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.OutputLog.MaxSizeMB < 0 || c.OutputLog.MaxBackups < 0 || c.OutputLog.MaxAgeDays < 0 {
		errs = append(errs, errors.New("output_log rotation values must be >= 0"))
	}
	return errors.Join(errs...)
}
