// Package config loads climacrop settings from defaults, an optional YAML file
// and CLIMACROP_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/banerjixplores/climacrop/pkg/errors"
)

// Settings is the full runtime configuration.
type Settings struct {
	DataPath  string `mapstructure:"data_path" yaml:"data_path"`
	ImagesDir string `mapstructure:"images_dir" yaml:"images_dir"`
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir"`

	HTTPAddr string `mapstructure:"http_addr" yaml:"http_addr"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	CacheSize   int           `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	RandomState int64         `mapstructure:"random_state" yaml:"random_state"`
	CVFolds     int           `mapstructure:"cv_folds" yaml:"cv_folds"`
	TestSize    float64       `mapstructure:"test_size" yaml:"test_size"`
	NJobs       int           `mapstructure:"n_jobs" yaml:"n_jobs"`
}

// EnvPrefix is the prefix for environment overrides, e.g. CLIMACROP_DATA_PATH.
const EnvPrefix = "CLIMACROP"

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		DataPath:    filepath.Join("data", "processed", "merged_climate_disease_final.csv"),
		ImagesDir:   "images",
		ModelsDir:   "models",
		HTTPAddr:    ":8501",
		LogLevel:    "info",
		LogFormat:   "json",
		CacheSize:   8,
		CacheTTL:    30 * time.Minute,
		RandomState: 42,
		CVFolds:     5,
		TestSize:    0.2,
		NJobs:       0,
	}
}

// Load reads configuration. Precedence: env > config file > defaults. An
// empty cfgFile looks for climacrop.yaml in the working directory; a missing
// file there is not an error, a missing explicit file is.
func Load(cfgFile string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("data_path", d.DataPath)
	v.SetDefault("images_dir", d.ImagesDir)
	v.SetDefault("models_dir", d.ModelsDir)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("random_state", d.RandomState)
	v.SetDefault("cv_folds", d.CVFolds)
	v.SetDefault("test_size", d.TestSize)
	v.SetDefault("n_jobs", d.NJobs)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", cfgFile)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("climacrop")
		v.SetConfigType("yaml")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config climacrop.yaml")
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks ranges of the numeric settings.
func (s *Settings) Validate() error {
	if s.CVFolds < 2 {
		return errors.NewValidationError("cv_folds", "must be at least 2", s.CVFolds)
	}
	if s.TestSize <= 0 || s.TestSize >= 1 {
		return errors.NewValidationError("test_size", "must be in (0, 1)", s.TestSize)
	}
	if s.CacheSize < 1 {
		return errors.NewValidationError("cache_size", "must be positive", s.CacheSize)
	}
	return nil
}

// Save writes s as YAML to path, creating parent directories.
func Save(s *Settings, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "mkdir config dir")
		}
	}
	b, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal yaml")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}
