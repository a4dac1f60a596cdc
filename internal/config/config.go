// Package config resolves runtime settings from flags, environment
// variables, and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

const defaultAPIBaseURL = "https://api.feedhaven.app/v1"

type Config struct {
	Email      string `long:"email" env:"FEEDHAVEN_EMAIL" description:"Account email"`
	Password   string `long:"password" env:"FEEDHAVEN_PASSWORD" description:"Account password"`
	APIBaseURL string `long:"api-base-url" env:"FEEDHAVEN_API_BASE_URL" description:"Remote service base URL"`
	DBPath     string `long:"db-path" env:"FEEDHAVEN_DB_PATH" description:"Path to the local snapshot database"`
	PageSize   int    `long:"page-size" env:"FEEDHAVEN_PAGE_SIZE" default:"50" description:"Items fetched per page"`
	Debug      bool   `long:"debug" env:"FEEDHAVEN_DEBUG" description:"Write a debug log file"`
	LogFile    string `long:"log-file" env:"FEEDHAVEN_LOG_FILE" default:"feedhaven.log" description:"Debug log destination"`
	ConfigFile string `long:"config" env:"FEEDHAVEN_CONFIG" description:"Optional YAML config file"`
}

// fileConfig is the YAML shape; only fields that make sense to keep in
// a file are accepted there.
type fileConfig struct {
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	APIBaseURL string `yaml:"api_base_url"`
	DBPath     string `yaml:"db_path"`
}

var ErrHelpRequested = errors.New("help requested")

// Load parses args (without the program name) and merges in the YAML
// file, if any. Flags and environment win over the file.
func Load(args []string) (Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return Config{}, ErrHelpRequested
		}
		return Config{}, fmt.Errorf("parse configuration: %w", err)
	}

	if cfg.ConfigFile != "" {
		if err := cfg.mergeFile(cfg.ConfigFile); err != nil {
			return Config{}, err
		}
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "feedhaven.db"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if c.Email == "" {
		c.Email = file.Email
	}
	if c.Password == "" {
		c.Password = file.Password
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = file.APIBaseURL
	}
	if c.DBPath == "" {
		c.DBPath = file.DBPath
	}
	return nil
}

func (c Config) Validate() error {
	if c.Email == "" {
		return errors.New("email is required (flag --email, env FEEDHAVEN_EMAIL, or config file)")
	}
	if c.Password == "" {
		return errors.New("password is required (flag --password, env FEEDHAVEN_PASSWORD, or config file)")
	}
	if strings.HasSuffix(c.APIBaseURL, "/") {
		return fmt.Errorf("api base URL must not end with '/': %s", c.APIBaseURL)
	}
	if c.PageSize < 1 || c.PageSize > 500 {
		return fmt.Errorf("page size must be between 1 and 500: %d", c.PageSize)
	}
	return nil
}
