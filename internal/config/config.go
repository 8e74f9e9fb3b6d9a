// Package config holds the notegraph configuration. A Config is built once at
// process start and passed into every component constructor.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

// Storage backends.
const (
	BackendJSON   = "json"
	BackendBadger = "badger"
)

// DataDirName is the default per-knowledge-base state directory.
const DataDirName = ".notegraph"

// Config represents the application configuration.
type Config struct {
	// Root is the knowledge-base root directory.
	Root string `yaml:"root"`

	// DataDir holds the cache and vector store files. Defaults to <root>/.notegraph.
	DataDir string `yaml:"data_dir"`

	Log       LogConfig       `yaml:"log"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
	Graph     GraphConfig     `yaml:"graph"`
	Storage   StorageConfig   `yaml:"storage"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Graph.Validate(); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	return c.Storage.Validate()
}

// StateDir returns the directory holding persisted artifacts.
func (c *Config) StateDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return filepath.Join(c.Root, DataDirName)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level slog.Level `yaml:"level"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Validate validates the embedding configuration. A missing API key is not a
// validation failure; it is reported when the provider is first used.
func (c *EmbeddingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderOpenAI, ProviderLocal)),
		validation.Field(&c.Model, validation.When(c.Provider == ProviderOpenAI, validation.Required)),
		validation.Field(&c.Dimensions, validation.Required, validation.Min(1)),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Required),
	)
}

// HasCredentials reports whether the provider can be called.
func (c *EmbeddingConfig) HasCredentials() bool {
	return c.Provider == ProviderLocal || c.APIKey != ""
}

// ChunkingConfig configures the chunking service.
type ChunkingConfig struct {
	MaxSize         int  `yaml:"max_size"`
	Overlap         int  `yaml:"overlap"`
	MinSize         int  `yaml:"min_size"`
	RespectHeadings bool `yaml:"respect_headings"`
}

// Validate validates the chunking configuration.
func (c *ChunkingConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MaxSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Overlap, validation.Min(0)),
		validation.Field(&c.MinSize, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.Overlap >= c.MaxSize {
		return fmt.Errorf("overlap %d must be smaller than max_size %d", c.Overlap, c.MaxSize)
	}
	return nil
}

// SearchConfig holds search tunables.
type SearchConfig struct {
	Limit            int           `yaml:"limit"`
	Threshold        float64       `yaml:"threshold"`
	MultiPhrase      bool          `yaml:"multi_phrase"`
	VariationTimeout time.Duration `yaml:"variation_timeout"`
	DiversityRatio   float64       `yaml:"diversity_ratio"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Limit, validation.Required, validation.Min(1)),
		validation.Field(&c.Threshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.VariationTimeout, validation.Required),
		validation.Field(&c.DiversityRatio, validation.Required, validation.Min(0.0), validation.Max(1.0)),
	)
}

// GraphConfig holds graph tunables.
type GraphConfig struct {
	HubCount int `yaml:"hub_count"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.HubCount, validation.Required, validation.Min(1)),
	)
}

// StorageConfig selects the vector store persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendJSON, BackendBadger)),
	)
}

// NewDefaultConfig returns a Config with default values for the given root.
func NewDefaultConfig(root string) *Config {
	return &Config{
		Root: root,
		Log: LogConfig{
			Level: slog.LevelInfo,
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderOpenAI,
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  64,
			Timeout:    30 * time.Second,
		},
		Chunking: ChunkingConfig{
			MaxSize:         1000,
			Overlap:         200,
			MinSize:         100,
			RespectHeadings: true,
		},
		Search: SearchConfig{
			Limit:            10,
			Threshold:        0.3,
			MultiPhrase:      true,
			VariationTimeout: 30 * time.Second,
			DiversityRatio:   0.4,
		},
		Graph: GraphConfig{
			HubCount: 10,
		},
		Storage: StorageConfig{
			Backend: BackendJSON,
		},
	}
}

// Validator is implemented by configuration types that can check themselves.
type Validator interface {
	Validate() error
}

// Load reads a YAML file into target, expanding ${VAR} references first.
// Fields absent from the file keep the values already present in target.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}
	}
	return nil
}

// LoadOptional behaves like Load but leaves target untouched when the file
// does not exist.
func LoadOptional[T any](filename string, target *T) error {
	if filename == "" {
		return nil
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return Load(filename, target)
}
