// Package config loads the layered YAML configuration that drives the
// search engine: which directories are registered, how lexical/semantic
// results are fused, and which model providers back each ModelKind.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Version     int                        `yaml:"version" json:"version"`
	Directories map[string]DirectoryConfig `yaml:"directories" json:"directories"`
	Search      SearchConfig               `yaml:"search" json:"search"`
	Embeddings  EmbeddingsConfig           `yaml:"embeddings" json:"embeddings"`
	Models      ModelsConfig               `yaml:"models" json:"models"`
	Performance PerformanceConfig          `yaml:"performance" json:"performance"`
	Logging     LoggingConfig              `yaml:"logging" json:"logging"`
}

// DirectoryConfig describes one registered search directory.
type DirectoryConfig struct {
	RootDir   string   `yaml:"root_dir" json:"root_dir"`
	Languages []string `yaml:"languages" json:"languages"`
}

// SearchConfig configures qualifier-DSL fusion.
type SearchConfig struct {
	// RRFConstant is the reciprocal-rank-fusion smoothing parameter (k).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// HybridWeights fuses [combined-lexical, combined-semantic, clip] via
	// weighted reciprocal rank fusion. Must be non-negative.
	HybridWeights [3]float64 `yaml:"hybrid_weights" json:"hybrid_weights"`

	// TextSourceWeights fuses [description, ocr, transcript] branches, for
	// both the lexical and the semantic combined search. Must sum to 1.0.
	TextSourceWeights [3]float64 `yaml:"text_source_weights" json:"text_source_weights"`

	// ClipWeights fuses [image, video] CLIP branches. Must sum to 1.0.
	ClipWeights [2]float64 `yaml:"clip_weights" json:"clip_weights"`

	// MaxResults bounds the number of results returned per query.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// BM25K1 / BM25B are the Okapi BM25 tuning constants used by the
	// lexical search engine.
	BM25K1 float64 `yaml:"bm25_k1" json:"bm25_k1"`
	BM25B  float64 `yaml:"bm25_b" json:"bm25_b"`
}

// EmbeddingsConfig configures the embedding providers.
type EmbeddingsConfig struct {
	// Provider selects the default embedding backend: "ollama" or "static".
	Provider   string `yaml:"provider" json:"provider"`
	TextModel  string `yaml:"text_model" json:"text_model"`
	ImageModel string `yaml:"image_model" json:"image_model"`
	ClipModel  string `yaml:"clip_model" json:"clip_model"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
}

// ModelsConfig configures the model manager's per-kind provider table and
// grace-period release behavior.
type ModelsConfig struct {
	GracePeriod time.Duration `yaml:"grace_period" json:"grace_period"`
	// Providers maps a ModelKind name (see internal/model.ModelKind) to the
	// provider identifier that should serve it.
	Providers map[string]string `yaml:"providers" json:"providers"`
}

// PerformanceConfig configures resource usage.
type PerformanceConfig struct {
	IndexWorkers  int    `yaml:"index_workers" json:"index_workers"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
	EmbeddingCacheSize int `yaml:"embedding_cache_size" json:"embedding_cache_size"`
}

// LoggingConfig configures the slog-based logger.
type LoggingConfig struct {
	Level         string `yaml:"level" json:"level"`
	FilePath      string `yaml:"file_path" json:"file_path"`
	WriteToStderr bool   `yaml:"write_to_stderr" json:"write_to_stderr"`
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version:     1,
		Directories: map[string]DirectoryConfig{},
		Search: SearchConfig{
			RRFConstant:       60,
			HybridWeights:     [3]float64{1, 1, 2},
			TextSourceWeights: [3]float64{0.5, 0.3, 0.2},
			ClipWeights:       [2]float64{0.5, 0.5},
			MaxResults:        20,
			BM25K1:            1.5,
			BM25B:             0.75,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "",
			TextModel:  "qwen3-embedding:0.6b",
			ImageModel: "clip-vit-b-32",
			ClipModel:  "clip-vit-b-32",
			BatchSize:  32,
			OllamaHost: "",
		},
		Models: ModelsConfig{
			GracePeriod: 10 * time.Second,
			Providers:   map[string]string{},
		},
		Performance: PerformanceConfig{
			IndexWorkers:       runtime.NumCPU(),
			WatchDebounce:      "200ms",
			EmbeddingCacheSize: 1000,
		},
		Logging: LoggingConfig{
			Level:         "info",
			WriteToStderr: true,
		},
	}
}

// Load loads configuration with increasing precedence:
//  1. hardcoded defaults
//  2. user config ($XDG_CONFIG_HOME/kfe/config.yaml)
//  3. project config (.kfe.yaml in dir)
//  4. KFE_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".kfe.yaml", ".kfe.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// GetUserConfigPath follows the XDG base directory spec.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kfe", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "kfe", "config.yaml")
	}
	return filepath.Join(home, ".config", "kfe", "config.yaml")
}

// mergeWith overlays non-zero fields from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	for name, dc := range other.Directories {
		c.Directories[name] = dc
	}

	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.HybridWeights != [3]float64{} {
		c.Search.HybridWeights = other.Search.HybridWeights
	}
	if other.Search.TextSourceWeights != [3]float64{} {
		c.Search.TextSourceWeights = other.Search.TextSourceWeights
	}
	if other.Search.ClipWeights != [2]float64{} {
		c.Search.ClipWeights = other.Search.ClipWeights
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.BM25K1 != 0 {
		c.Search.BM25K1 = other.Search.BM25K1
	}
	if other.Search.BM25B != 0 {
		c.Search.BM25B = other.Search.BM25B
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.TextModel != "" {
		c.Embeddings.TextModel = other.Embeddings.TextModel
	}
	if other.Embeddings.ImageModel != "" {
		c.Embeddings.ImageModel = other.Embeddings.ImageModel
	}
	if other.Embeddings.ClipModel != "" {
		c.Embeddings.ClipModel = other.Embeddings.ClipModel
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}

	if other.Models.GracePeriod != 0 {
		c.Models.GracePeriod = other.Models.GracePeriod
	}
	for k, v := range other.Models.Providers {
		c.Models.Providers[k] = v
	}

	if other.Performance.IndexWorkers != 0 {
		c.Performance.IndexWorkers = other.Performance.IndexWorkers
	}
	if other.Performance.WatchDebounce != "" {
		c.Performance.WatchDebounce = other.Performance.WatchDebounce
	}
	if other.Performance.EmbeddingCacheSize != 0 {
		c.Performance.EmbeddingCacheSize = other.Performance.EmbeddingCacheSize
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
}

// applyEnvOverrides applies KFE_* environment variable overrides, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KFE_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("KFE_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("KFE_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("KFE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks invariants the rest of the engine relies on.
func (c *Config) Validate() error {
	for _, w := range c.Search.HybridWeights {
		if w < 0 {
			return fmt.Errorf("search.hybrid_weights must be non-negative, got %v", c.Search.HybridWeights)
		}
	}
	if sum := sum3(c.Search.TextSourceWeights); math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("search.text_source_weights must sum to 1.0, got %.2f", sum)
	}
	if sum := c.Search.ClipWeights[0] + c.Search.ClipWeights[1]; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("search.clip_weights must sum to 1.0, got %.2f", sum)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.Search.BM25K1 <= 0 || c.Search.BM25B < 0 || c.Search.BM25B > 1 {
		return fmt.Errorf("search.bm25_k1 must be positive and bm25_b must be in [0,1], got k1=%.2f b=%.2f", c.Search.BM25K1, c.Search.BM25B)
	}
	if c.Embeddings.Provider != "" {
		valid := map[string]bool{"ollama": true, "static": true}
		if !valid[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static' or empty (static), got %s", c.Embeddings.Provider)
		}
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %s", c.Logging.Level)
	}
	return nil
}

func sum3(w [3]float64) float64 { return w[0] + w[1] + w[2] }

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindProjectRoot walks up from startDir looking for .git or .kfe.yaml(.yml).
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	current := absDir
	for {
		if dirExists(filepath.Join(current, ".git")) {
			return current, nil
		}
		if fileExists(filepath.Join(current, ".kfe.yaml")) || fileExists(filepath.Join(current, ".kfe.yml")) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
