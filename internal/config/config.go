// Package config resolves the storage root and loads optional settings.
//
// The storage root is resolved exactly once, by a single function, and the
// resulting value is passed into every component. Nothing else in the module
// reads the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	envStorageRoot = "CHRONICLE_STORAGE_PATH"
	envProjectDir  = "CHRONICLE_PROJECT_DIR"

	// storageSubdir is the per-project convention when no explicit root is
	// configured.
	storageSubdir = ".chronicle"

	configFile = "config.yaml"
)

// ResolveStorageRoot picks the storage root for logging data.
//
// Precedence: explicit CHRONICLE_STORAGE_PATH override, then the working
// directory supplied by the host, then CHRONICLE_PROJECT_DIR, then the
// process's current directory.
func ResolveStorageRoot(cwd string) string {
	if p := os.Getenv(envStorageRoot); p != "" {
		return p
	}

	dir := cwd
	if dir == "" {
		dir = os.Getenv(envProjectDir)
	}
	if dir == "" {
		if wd, err := os.Getwd(); err == nil {
			dir = wd
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, storageSubdir)
}

// EmbeddingConfig configures the optional external embedding encoder. An
// empty endpoint disables semantic search entirely.
type EmbeddingConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	Dimension int    `yaml:"dimension"`
}

// Config holds the optional settings read from <root>/config.yaml.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// Load reads the config file under root if present, applying defaults and
// environment overrides. A missing file is not an error.
func Load(root string) (*Config, error) {
	cfg := &Config{}
	cfg.Embedding.Model = "all-MiniLM-L6-v2"
	cfg.Embedding.Dimension = 384

	path := filepath.Join(root, configFile)
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if v := os.Getenv("CHRONICLE_EMBEDDING_ENDPOINT"); v != "" {
		cfg.Embedding.Endpoint = v
	}
	if v := os.Getenv("CHRONICLE_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("CHRONICLE_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	if cfg.Embedding.Dimension <= 0 {
		cfg.Embedding.Dimension = 384
	}

	return cfg, nil
}

// Layout helpers for the on-disk structure under the storage root.

// SessionsDir holds one append-only JSONL file per session.
func SessionsDir(root string) string {
	return filepath.Join(root, "sessions")
}

// ImagesDir holds the content-addressed attachments for one session.
func ImagesDir(root, sessionID string) string {
	return filepath.Join(root, "images", sessionID)
}

// IndexDBPath is the SQLite mirror of the session logs.
func IndexDBPath(root string) string {
	return filepath.Join(root, "db", "index.db")
}

// EmbeddingsDBPath is the optional vector store.
func EmbeddingsDBPath(root string) string {
	return filepath.Join(root, "db", "embeddings.db")
}

// ErrorLogPath is the append-only side error log for the ingestion path.
func ErrorLogPath(root string) string {
	return filepath.Join(root, "errors.log")
}
