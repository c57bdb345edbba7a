// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads process configuration for the ysrn binaries.
// Values come from an optional YAML file overridden by YSRN_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/poiesic/ysrn/ai"
	"github.com/poiesic/ysrn/decompose"
	"github.com/poiesic/ysrn/retrieval"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "YSRN_"

// Config holds all configuration values.
type Config struct {
	// Storage
	DatabasePath string `koanf:"database_path"`

	// Embedding service
	EmbeddingHost      string `koanf:"embedding_host"`
	EmbeddingModel     string `koanf:"embedding_model"`
	EmbeddingDimension int    `koanf:"embedding_dimension"`
	APIToken           string `koanf:"api_token"`

	// Decomposition engine
	NoiseThreshold     float64 `koanf:"noise_threshold"`
	RelevanceThreshold float64 `koanf:"relevance_threshold"`
	BlockSize          int     `koanf:"block_size"`

	// Gated retriever
	GateSeed  uint64  `koanf:"gate_seed"`
	GateScale float64 `koanf:"gate_scale"`
	GateBias  float64 `koanf:"gate_bias"`
	NumHeads  int     `koanf:"num_heads"`
	HeadDim   int     `koanf:"head_dim"`

	// Pipeline
	TopK          int `koanf:"top_k"`
	CandidatePool int `koanf:"candidate_pool"`
	PoolSize      int `koanf:"pool_size"`

	LogLevel string `koanf:"log_level"`
}

// Configuration validation errors.
var (
	ErrMissingDatabasePath  = errors.New("database_path is required")
	ErrMissingEmbeddingHost = errors.New("embedding_host is required")
	ErrMissingModel         = errors.New("embedding_model is required")
	ErrInvalidDimension     = errors.New("embedding_dimension must be positive")
	ErrInvalidThreshold     = errors.New("thresholds must be within [0, 1]")
	ErrInvalidBlockSize     = errors.New("block_size must be positive")
	ErrInvalidHeads         = errors.New("num_heads and head_dim must be positive")
	ErrInvalidTopK          = errors.New("top_k and candidate_pool must be positive")
	ErrInvalidLogLevel      = errors.New("log_level must be one of debug, info, warn, error")
	ErrInvalidNumber        = errors.New("invalid number")
)

// Default values.
const (
	DefaultDatabasePath       = "./ysrn.db"
	DefaultEmbeddingDimension = 768
	DefaultTopK               = 10
	DefaultCandidatePool      = 50
	DefaultLogLevel           = "info"
)

// Default returns a Config populated with defaults only.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		DatabasePath:       DefaultDatabasePath,
		EmbeddingHost:      aiDefaults.EmbeddingHost,
		EmbeddingModel:     aiDefaults.EmbeddingModel,
		EmbeddingDimension: DefaultEmbeddingDimension,
		APIToken:           aiDefaults.APIToken,
		NoiseThreshold:     decompose.DefaultNoiseThreshold,
		RelevanceThreshold: decompose.DefaultRelevanceThreshold,
		BlockSize:          1,
		GateSeed:           42,
		GateScale:          retrieval.DefaultGateScale,
		GateBias:           retrieval.DefaultGateBias,
		NumHeads:           retrieval.DefaultNumHeads,
		HeadDim:            retrieval.DefaultHeadDim,
		TopK:               DefaultTopK,
		CandidatePool:      DefaultCandidatePool,
		LogLevel:           DefaultLogLevel,
	}
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables take precedence over file values, which take
// precedence over defaults.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	cfg := Default()
	l := &loader{k: k}

	l.str("database_path", &cfg.DatabasePath)
	l.str("embedding_host", &cfg.EmbeddingHost)
	l.str("embedding_model", &cfg.EmbeddingModel)
	l.integer("embedding_dimension", &cfg.EmbeddingDimension)
	l.str("api_token", &cfg.APIToken)
	l.float("noise_threshold", &cfg.NoiseThreshold)
	l.float("relevance_threshold", &cfg.RelevanceThreshold)
	l.integer("block_size", &cfg.BlockSize)
	l.uint("gate_seed", &cfg.GateSeed)
	l.float("gate_scale", &cfg.GateScale)
	l.float("gate_bias", &cfg.GateBias)
	l.integer("num_heads", &cfg.NumHeads)
	l.integer("head_dim", &cfg.HeadDim)
	l.integer("top_k", &cfg.TopK)
	l.integer("candidate_pool", &cfg.CandidatePool)
	l.integer("pool_size", &cfg.PoolSize)
	l.str("log_level", &cfg.LogLevel)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	errs := append(l.errs, cfg.Validate()...)
	return cfg, errs
}

// loader applies file values then environment overrides for one key at a
// time, collecting parse errors.
type loader struct {
	k    *koanf.Koanf
	errs []error
}

// envKey maps a koanf key to its environment variable, e.g. top_k -> YSRN_TOP_K.
func envKey(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

func (l *loader) str(key string, dst *string) {
	if l.k.Exists(key) {
		*dst = l.k.String(key)
	}
	if val := os.Getenv(envKey(key)); val != "" {
		*dst = val
	}
}

func (l *loader) integer(key string, dst *int) {
	if l.k.Exists(key) {
		*dst = l.k.Int(key)
	}
	if val := os.Getenv(envKey(key)); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s must be a valid integer: %w", envKey(key), ErrInvalidNumber))
			return
		}
		*dst = i
	}
}

func (l *loader) uint(key string, dst *uint64) {
	if l.k.Exists(key) {
		*dst = uint64(l.k.Int64(key))
	}
	if val := os.Getenv(envKey(key)); val != "" {
		u, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s must be a valid unsigned integer: %w", envKey(key), ErrInvalidNumber))
			return
		}
		*dst = u
	}
}

func (l *loader) float(key string, dst *float64) {
	if l.k.Exists(key) {
		*dst = l.k.Float64(key)
	}
	if val := os.Getenv(envKey(key)); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s must be a valid float: %w", envKey(key), ErrInvalidNumber))
			return
		}
		*dst = f
	}
}

// Validate checks that all configuration values are usable.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabasePath == "" {
		errs = append(errs, ErrMissingDatabasePath)
	}
	if c.EmbeddingHost == "" {
		errs = append(errs, ErrMissingEmbeddingHost)
	}
	if c.EmbeddingModel == "" {
		errs = append(errs, ErrMissingModel)
	}
	if c.EmbeddingDimension < 1 {
		errs = append(errs, ErrInvalidDimension)
	}
	if c.NoiseThreshold < 0 || c.NoiseThreshold > 1 || c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		errs = append(errs, ErrInvalidThreshold)
	}
	if c.BlockSize < 1 {
		errs = append(errs, ErrInvalidBlockSize)
	}
	if c.NumHeads < 1 || c.HeadDim < 1 {
		errs = append(errs, ErrInvalidHeads)
	}
	if c.TopK < 1 || c.CandidatePool < 1 {
		errs = append(errs, ErrInvalidTopK)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ErrInvalidLogLevel)
	}

	return errs
}

// AIConfig returns the embedding service configuration.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.EmbeddingHost),
		ai.WithEmbeddingModel(c.EmbeddingModel),
		ai.WithAPIToken(c.APIToken),
		ai.WithDimension(c.EmbeddingDimension),
	)
}

// EngineOptions returns the decomposition engine options.
func (c *Config) EngineOptions() []decompose.Option {
	return []decompose.Option{
		decompose.WithNoiseThreshold(c.NoiseThreshold),
		decompose.WithRelevanceThreshold(c.RelevanceThreshold),
		decompose.WithBlockSize(c.BlockSize),
	}
}

// GateInit returns the seeded initialization for fresh gate weights.
func (c *Config) GateInit() retrieval.GateInit {
	return retrieval.GateInit{Seed: c.GateSeed, Scale: c.GateScale, Bias: c.GateBias}
}

// GateWidth is the gate output width, NumHeads * HeadDim.
func (c *Config) GateWidth() int {
	return c.NumHeads * c.HeadDim
}

// LogSummary returns a summary of the configuration suitable for logging.
// The API token is masked.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"database_path":       c.DatabasePath,
		"embedding_host":      c.EmbeddingHost,
		"embedding_model":     c.EmbeddingModel,
		"embedding_dimension": strconv.Itoa(c.EmbeddingDimension),
		"api_token":           maskSecret(c.APIToken),
		"noise_threshold":     strconv.FormatFloat(c.NoiseThreshold, 'g', -1, 64),
		"relevance_threshold": strconv.FormatFloat(c.RelevanceThreshold, 'g', -1, 64),
		"block_size":          strconv.Itoa(c.BlockSize),
		"gate_seed":           strconv.FormatUint(c.GateSeed, 10),
		"heads":               fmt.Sprintf("%dx%d", c.NumHeads, c.HeadDim),
		"top_k":               strconv.Itoa(c.TopK),
		"candidate_pool":      strconv.Itoa(c.CandidatePool),
		"log_level":           c.LogLevel,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}
