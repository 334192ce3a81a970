// Package config loads server settings from defaults, an optional YAML file,
// a .env file and the process environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		Listen    string `yaml:"listen"`
		LogLevel  string `yaml:"logLevel"`
		LogFormat string `yaml:"logFormat"`

		Storage StorageConfig `yaml:"storage"`
		Auth    AuthConfig    `yaml:"auth"`
		AI      AIConfig      `yaml:"ai"`
		Editor  EditorConfig  `yaml:"editor"`
	}

	StorageConfig struct {
		// Type selects the row store: memory or sqlite.
		Type           string `yaml:"type"`
		DataSourceName string `yaml:"dataSourceName"`
		// Blob selects the blob store: memory, filesystem or s3.
		Blob      string `yaml:"blob"`
		LocalPath string `yaml:"localPath"`
		S3Bucket  string `yaml:"s3Bucket"`
	}

	AuthConfig struct {
		JWTSecret string `yaml:"jwtSecret"`

		GitHubClientID     string `yaml:"githubClientId"`
		GitHubClientSecret string `yaml:"githubClientSecret"`
		GitHubRedirectURL  string `yaml:"githubRedirectUrl"`

		OIDCIssuerURL    string `yaml:"oidcIssuerUrl"`
		OIDCClientID     string `yaml:"oidcClientId"`
		OIDCClientSecret string `yaml:"oidcClientSecret"`
		OIDCRedirectURL  string `yaml:"oidcRedirectUrl"`
	}

	AIConfig struct {
		// Provider is openai or gemini.
		Provider      string `yaml:"provider"`
		Model         string `yaml:"model"`
		OpenAIKey     string `yaml:"openaiApiKey"`
		OpenAIBaseURL string `yaml:"openaiBaseUrl"`
		GeminiKey     string `yaml:"geminiApiKey"`
	}

	EditorConfig struct {
		CoalesceWindow    time.Duration `yaml:"coalesceWindow"`
		OutboxMaxAttempts int           `yaml:"outboxMaxAttempts"`
		OutboxBaseDelay   time.Duration `yaml:"outboxBaseDelay"`
		NoticeTTL         time.Duration `yaml:"noticeTTL"`
	}
)

func Default() *Config {
	return &Config{
		Listen:    ":3002",
		LogLevel:  "info",
		LogFormat: "text",
		Storage: StorageConfig{
			Type:           "memory",
			DataSourceName: "myriad.db",
			Blob:           "memory",
			LocalPath:      "./data",
		},
		AI: AIConfig{
			Provider:      "openai",
			OpenAIBaseURL: "https://api.openai.com",
		},
		Editor: EditorConfig{
			CoalesceWindow:    time.Second,
			OutboxMaxAttempts: 5,
			OutboxBaseDelay:   200 * time.Millisecond,
			NoticeTTL:         5 * time.Second,
		},
	}
}

// Load builds the configuration. path may be empty; a missing .env file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LOG_LEVEL":            &c.LogLevel,
		"LOG_FORMAT":           &c.LogFormat,
		"STORAGE_TYPE":         &c.Storage.Type,
		"DATA_SOURCE_NAME":     &c.Storage.DataSourceName,
		"BLOB_STORAGE":         &c.Storage.Blob,
		"LOCAL_STORAGE_PATH":   &c.Storage.LocalPath,
		"S3_BUCKET_NAME":       &c.Storage.S3Bucket,
		"JWT_SECRET":           &c.Auth.JWTSecret,
		"GITHUB_CLIENT_ID":     &c.Auth.GitHubClientID,
		"GITHUB_CLIENT_SECRET": &c.Auth.GitHubClientSecret,
		"GITHUB_REDIRECT_URL":  &c.Auth.GitHubRedirectURL,
		"OIDC_ISSUER_URL":      &c.Auth.OIDCIssuerURL,
		"OIDC_CLIENT_ID":       &c.Auth.OIDCClientID,
		"OIDC_CLIENT_SECRET":   &c.Auth.OIDCClientSecret,
		"OIDC_REDIRECT_URL":    &c.Auth.OIDCRedirectURL,
		"AI_PROVIDER":          &c.AI.Provider,
		"AI_MODEL":             &c.AI.Model,
		"OPENAI_API_KEY":       &c.AI.OpenAIKey,
		"OPENAI_BASE_URL":      &c.AI.OpenAIBaseURL,
		"GEMINI_API_KEY":       &c.AI.GeminiKey,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"HISTORY_COALESCE_WINDOW": &c.Editor.CoalesceWindow,
		"OUTBOX_BASE_DELAY":       &c.Editor.OutboxBaseDelay,
		"NOTICE_TTL":              &c.Editor.NoticeTTL,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := lookup("OUTBOX_MAX_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid OUTBOX_MAX_ATTEMPTS %q", v)
		}
		c.Editor.OutboxMaxAttempts = n
	}
	return nil
}
