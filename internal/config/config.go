package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/manash/roommood/pkg/models"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	fileName = "config.yaml"
)

var (
	ErrAPIKeyMissing  = errors.New("API key required: run 'roommood keys set' or set GEMINI_API_KEY")
	ErrNoStoredKey    = errors.New("no API key stored")
	ErrInvalidBackend = errors.New("store backend must be sqlite or redis")
)

// APIKeyEnvVars are consulted in order when neither a flag nor the config
// file provides a key.
var APIKeyEnvVars = []string{"GEMINI_API_KEY", "API_KEY"}

type StoreConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path,omitempty"`
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`
	RedisPrefix   string `yaml:"redis_prefix,omitempty"`
}

type Config struct {
	APIKey     string      `yaml:"api_key,omitempty"`
	BaseURL    string      `yaml:"base_url,omitempty"`
	TextModel  string      `yaml:"text_model"`
	ImageModel string      `yaml:"image_model"`
	TimeoutSec int         `yaml:"timeout_sec"`
	Retries    int         `yaml:"retries"`
	Store      StoreConfig `yaml:"store"`
	LogMode    string      `yaml:"log_mode"`
	Verbose    bool        `yaml:"verbose"`
}

func Default() *Config {
	return &Config{
		TextModel:  models.DefaultTextModel,
		ImageModel: models.DefaultImageModel,
		TimeoutSec: 120,
		Store:      StoreConfig{Backend: BackendSQLite},
		LogMode:    "dev",
	}
}

// Dir returns the platform config directory. ROOMMOOD_CONFIG_DIR overrides it.
func Dir() (string, error) {
	if dir := os.Getenv("ROOMMOOD_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "roommood"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "roommood"), nil
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, "roommood"), nil
	}
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load reads the config file, fills defaults for anything it leaves out and
// applies ROOMMOOD_* environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// SaveFile writes cfg with owner-only permissions, since it may hold the key.
func SaveFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", fileName, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"ROOMMOOD_BASE_URL":       &c.BaseURL,
		"ROOMMOOD_TEXT_MODEL":     &c.TextModel,
		"ROOMMOOD_IMAGE_MODEL":    &c.ImageModel,
		"ROOMMOOD_STORE":          &c.Store.Backend,
		"ROOMMOOD_STORE_PATH":     &c.Store.Path,
		"ROOMMOOD_REDIS_ADDR":     &c.Store.RedisAddr,
		"ROOMMOOD_REDIS_PASSWORD": &c.Store.RedisPassword,
		"ROOMMOOD_REDIS_PREFIX":   &c.Store.RedisPrefix,
		"ROOMMOOD_LOG_MODE":       &c.LogMode,
	}
	for env, dst := range str {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"ROOMMOOD_TIMEOUT_SEC": &c.TimeoutSec,
		"ROOMMOOD_RETRIES":     &c.Retries,
		"ROOMMOOD_REDIS_DB":    &c.Store.RedisDB,
	}
	for env, dst := range ints {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		*dst = n
	}

	if v := os.Getenv("ROOMMOOD_VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ROOMMOOD_VERBOSE: %w", err)
		}
		c.Verbose = b
	}
	return nil
}

func (c *Config) Validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidBackend, c.Store.Backend)
	}
	if c.Store.Backend == BackendRedis && c.Store.RedisAddr == "" {
		return errors.New("store.redis_addr is required for the redis backend")
	}
	if c.TimeoutSec < 0 || c.Retries < 0 {
		return errors.New("timeout_sec and retries must not be negative")
	}
	return nil
}

// ResolveAPIKey picks the key by priority: explicit flag, config file, then
// the environment. The second result names the source for display.
func (c *Config) ResolveAPIKey(explicit string) (string, string, error) {
	if explicit != "" {
		return explicit, "command-line flag", nil
	}
	if c.APIKey != "" {
		return c.APIKey, "config file", nil
	}
	for _, env := range APIKeyEnvVars {
		if v := os.Getenv(env); v != "" {
			return v, "environment variable (" + env + ")", nil
		}
	}
	return "", "", ErrAPIKeyMissing
}

// SetAPIKey stores key in the config file at path, keeping other settings.
func SetAPIKey(path, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key cannot be empty")
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return err
	}
	cfg.APIKey = key
	return SaveFile(path, cfg)
}

func DeleteAPIKey(path string) error {
	cfg, err := LoadFile(path)
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		return ErrNoStoredKey
	}
	cfg.APIKey = ""
	return SaveFile(path, cfg)
}

// MaskKey returns a masked version of the key for display
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
