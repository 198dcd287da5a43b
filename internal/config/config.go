// Copyright 2025 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the cdsl command's configuration from a YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ianlewis/go-cdsl"
	"github.com/ianlewis/go-cdsl/translit"
)

// ErrInvalidConfig indicates that a configuration value is invalid.
var ErrInvalidConfig = errors.New("invalid config")

// EnvPath is the environment variable holding the config file path.
const EnvPath = "CDSL_CONFIG"

// Config is the cdsl command's configuration.
type Config struct {
	// DataDir is the corpus data directory. Empty means the platform
	// default.
	DataDir string `yaml:"data_dir" env:"CDSL_DATA_DIR"`

	// Dictionaries are set up by "cdsl setup" with no arguments.
	Dictionaries []string `yaml:"dictionaries" env:"CDSL_DICTIONARIES" env-default:"MW,AP90,MWE,AE" env-separator:","`

	Server  ServerConfig  `yaml:"server"`
	Search  SearchConfig  `yaml:"search"`
	Install InstallConfig `yaml:"install"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds settings for the CDSL web site.
type ServerConfig struct {
	URL               string  `yaml:"url"                 env:"CDSL_SERVER_URL"          env-default:"https://www.sanskrit-lexicon.uni-koeln.de/"`
	ArchiveSuffix     string  `yaml:"archive_suffix"      env:"CDSL_ARCHIVE_SUFFIX"      env-default:"xml.zip"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"CDSL_REQUESTS_PER_SECOND" env-default:"2"`
	UserAgent         string  `yaml:"user_agent"          env:"CDSL_USER_AGENT"          env-default:"go-cdsl"`
}

// SearchConfig holds the default search settings.
type SearchConfig struct {
	InputScheme  string `yaml:"input_scheme"  env:"CDSL_INPUT_SCHEME"  env-default:"devanagari"`
	OutputScheme string `yaml:"output_scheme" env:"CDSL_OUTPUT_SCHEME" env-default:"devanagari"`
	Mode         string `yaml:"mode"          env:"CDSL_MODE"          env-default:"key"`
	Limit        int    `yaml:"limit"         env:"CDSL_LIMIT"         env-default:"0"`
	IgnoreCase   bool   `yaml:"ignore_case"   env:"CDSL_IGNORE_CASE"`

	// EnglishDictionaries have English headwords that are never
	// transliterated.
	EnglishDictionaries []string `yaml:"english_dictionaries" env:"CDSL_ENGLISH_DICTIONARIES" env-default:"MWE,BOR,AE" env-separator:","`

	// KeepKeys disables transliteration of headwords in every dictionary.
	KeepKeys bool `yaml:"keep_keys" env:"CDSL_KEEP_KEYS"`
}

// InstallConfig holds dictionary installation settings.
type InstallConfig struct {
	Workers int           `yaml:"workers" env:"CDSL_WORKERS" env-default:"4"`
	Timeout time.Duration `yaml:"timeout" env:"CDSL_TIMEOUT" env-default:"30m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"CDSL_LOG_LEVEL"  env-default:"warn"`
	Format string `yaml:"format" env:"CDSL_LOG_FORMAT" env-default:"text"`
}

// Load reads the configuration. Values come from the environment, then the
// YAML file at path, then defaults. If path is empty the file named by
// $CDSL_CONFIG is read. A missing file is an error only if its path was
// given explicitly.
func Load(path string) (*Config, error) {
	var cfg Config

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPath)
		explicit = path != ""
	}

	switch _, err := os.Stat(path); {
	case path != "" && err == nil:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	case explicit:
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	default:
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: reading environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration and canonicalizes scheme names.
func (c *Config) Validate() error {
	in, err := translit.Validate(c.Search.InputScheme)
	if err != nil {
		return fmt.Errorf("search.input_scheme: %w", err)
	}
	out, err := translit.Validate(c.Search.OutputScheme)
	if err != nil {
		return fmt.Errorf("search.output_scheme: %w", err)
	}
	c.Search.InputScheme, c.Search.OutputScheme = string(in), string(out)

	if _, err := cdsl.ParseMode(c.Search.Mode); err != nil {
		return fmt.Errorf("search.mode: %w", err)
	}
	if c.Search.Limit < 0 {
		return fmt.Errorf("%w: search.limit must be >= 0 (got %d)", ErrInvalidConfig, c.Search.Limit)
	}
	if c.Install.Workers <= 0 {
		return fmt.Errorf("%w: install.workers must be > 0 (got %d)", ErrInvalidConfig, c.Install.Workers)
	}
	if c.Install.Timeout < 0 {
		return fmt.Errorf("%w: install.timeout must be >= 0 (got %s)", ErrInvalidConfig, c.Install.Timeout)
	}
	if c.Server.URL == "" {
		return fmt.Errorf("%w: server.url is empty", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}
