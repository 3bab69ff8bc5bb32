// Package config loads server configuration: built-in defaults, then an
// optional YAML file (CONFIG_FILE), then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Port     string         `yaml:"port"`
	Log      LogConfig      `yaml:"log"`
	GitHub   GitHubConfig   `yaml:"github"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Temporal TemporalConfig `yaml:"temporal"`
	OTel     OTelConfig     `yaml:"otel"`
	Cache    CacheConfig    `yaml:"cache"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// GitHubConfig points at the inventory repository. Repo is "owner/name".
type GitHubConfig struct {
	APIURL           string `yaml:"apiUrl"`
	Token            string `yaml:"token"`
	AppID            int64  `yaml:"appId"`
	InstallationID   int64  `yaml:"installationId"`
	PrivateKeyPath   string `yaml:"privateKeyPath"`
	Repo             string `yaml:"repo"`
	Branch           string `yaml:"branch"`
	CommitterName    string `yaml:"committerName"`
	CommitterEmail   string `yaml:"committerEmail"`
	MaxAttempts      int    `yaml:"maxAttempts"`
	FetchConcurrency int    `yaml:"fetchConcurrency"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwtSecret"`
	SessionTTL time.Duration `yaml:"sessionTTL"`
}

// TemporalConfig enables replenishment runs when HostPort is set.
type TemporalConfig struct {
	HostPort  string `yaml:"hostPort"`
	Namespace string `yaml:"namespace"`
}

type OTelConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port: "8080",
		Log:  LogConfig{Format: "json", Level: "info"},
		GitHub: GitHubConfig{
			Branch:           "main",
			CommitterName:    "stockroom",
			CommitterEmail:   "stockroom@users.noreply.github.com",
			MaxAttempts:      4,
			FetchConcurrency: 8,
		},
		Auth:     AuthConfig{SessionTTL: 12 * time.Hour},
		Temporal: TemporalConfig{Namespace: "default"},
		OTel:     OTelConfig{ServiceName: "stockroom-server"},
		Cache:    CacheConfig{TTL: 30 * time.Second},
	}
}

// Load builds the configuration. path overrides CONFIG_FILE; both may be empty.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.GitHub.APIURL, "GITHUB_API_URL")
	setString(&cfg.GitHub.Token, "GITHUB_TOKEN")
	setString(&cfg.GitHub.PrivateKeyPath, "GITHUB_PRIVATE_KEY_PATH")
	setString(&cfg.GitHub.Repo, "GITHUB_REPO")
	setString(&cfg.GitHub.Branch, "GITHUB_BRANCH")
	setString(&cfg.Postgres.URL, "POSTGRES_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Temporal.HostPort, "TEMPORAL_HOSTPORT")
	setString(&cfg.OTel.ServiceName, "OTEL_SERVICE_NAME")

	var errs []error
	errs = append(errs,
		setInt64(&cfg.GitHub.AppID, "GITHUB_APP_ID"),
		setInt64(&cfg.GitHub.InstallationID, "GITHUB_INSTALLATION_ID"),
		setDuration(&cfg.Auth.SessionTTL, "SESSION_TTL"),
		setDuration(&cfg.Cache.TTL, "CACHE_TTL"),
		setBool(&cfg.OTel.Enabled, "OTEL_ENABLED"),
	)
	return errors.Join(errs...)
}

// Validate reports every problem that would stop the server from starting.
func (c *Config) Validate() error {
	var errs []error
	if c.GitHub.Repo == "" {
		errs = append(errs, errors.New("github.repo (GITHUB_REPO) is required"))
	} else if _, _, err := splitRepo(c.GitHub.Repo); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwtSecret (JWT_SECRET) is required"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.sessionTTL must be positive"))
	}
	if c.GitHub.AppID != 0 && (c.GitHub.InstallationID == 0 || c.GitHub.PrivateKeyPath == "") {
		errs = append(errs, errors.New("github app auth needs installationId and privateKeyPath"))
	}
	return errors.Join(errs...)
}

// RepoOwner returns the owner half of GitHub.Repo.
func (c *Config) RepoOwner() string {
	owner, _, _ := splitRepo(c.GitHub.Repo)
	return owner
}

// RepoName returns the name half of GitHub.Repo.
func (c *Config) RepoName() string {
	_, name, _ := splitRepo(c.GitHub.Repo)
	return name
}

func splitRepo(slug string) (string, string, error) {
	owner, name, ok := strings.Cut(slug, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("github.repo %q must be owner/name", slug)
	}
	return owner, name, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
