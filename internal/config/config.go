package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
}

// Schedule contains the daily posting slots used by the slot calculator.
type Schedule struct {
	// Slots are HH:MM times of day, ordered ascending, in Timezone.
	Slots    []string `toml:"slots"`
	Timezone string   `toml:"timezone"`
}

// Storage contains configuration for the staged-media bucket.
type Storage struct {
	// BucketDir holds media awaiting publication.
	BucketDir string `toml:"bucket_dir"`
	// PublicBaseURL is the URL prefix under which BucketDir is served.
	// Reel publishing requires it; the Graph API fetches media by URL.
	PublicBaseURL string `toml:"public_base_url"`
	RetentionDays int    `toml:"retention_days"`
}

// XAccount holds the per-account OAuth 1.0a user tokens for X.
type XAccount struct {
	AccessToken  string `toml:"access_token"`
	AccessSecret string `toml:"access_secret"`
}

// XAPI contains X (Twitter) API configuration shared across accounts.
type XAPI struct {
	APIBaseURL     string              `toml:"api_base_url"`
	UploadBaseURL  string              `toml:"upload_base_url"`
	ConsumerKey    string              `toml:"consumer_key"`
	ConsumerSecret string              `toml:"consumer_secret"`
	Accounts       map[string]XAccount `toml:"accounts"`
}

// IGAccount identifies one Instagram business account.
type IGAccount struct {
	BusinessID string `toml:"business_id"`
}

// Instagram contains Graph API configuration shared across accounts.
type Instagram struct {
	GraphBaseURL string               `toml:"graph_base_url"`
	AccessToken  string               `toml:"access_token"`
	Accounts     map[string]IGAccount `toml:"accounts"`
}

// Workflow contains dispatcher timing and retention configuration.
type Workflow struct {
	// CheckInterval is the seconds between dispatch passes.
	CheckInterval      int `toml:"check_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	// PostedRetentionDays bounds how long posted rows are kept.
	PostedRetentionDays int `toml:"posted_retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Published      bool   `toml:"published"`
	Failures       bool   `toml:"failures"`
	PassSummary    bool   `toml:"pass_summary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for herald.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Schedule      Schedule      `toml:"schedule"`
	Storage       Storage       `toml:"storage"`
	XAPI          XAPI          `toml:"x_api"`
	Instagram     Instagram     `toml:"instagram"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/herald/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file existed at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("herald.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the directories herald needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.Storage.BucketDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath resolves ~ and environment variables in a filesystem path.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.StagingDir, err = ExpandPath(c.Paths.StagingDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Storage.BucketDir, err = ExpandPath(c.Storage.BucketDir); err != nil {
		return err
	}
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	c.XAPI.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.XAPI.APIBaseURL), "/")
	c.XAPI.UploadBaseURL = strings.TrimRight(strings.TrimSpace(c.XAPI.UploadBaseURL), "/")
	c.Instagram.GraphBaseURL = strings.TrimRight(strings.TrimSpace(c.Instagram.GraphBaseURL), "/")
	return nil
}
