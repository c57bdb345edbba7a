package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/ysrn/decompose"
	"github.com/poiesic/ysrn/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ysrn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, errs := Load("")
	require.Empty(t, errs)

	assert.Equal(t, DefaultDatabasePath, cfg.DatabasePath)
	assert.Equal(t, DefaultEmbeddingDimension, cfg.EmbeddingDimension)
	assert.Equal(t, decompose.DefaultNoiseThreshold, cfg.NoiseThreshold)
	assert.Equal(t, decompose.DefaultRelevanceThreshold, cfg.RelevanceThreshold)
	assert.Equal(t, retrieval.DefaultNumHeads, cfg.NumHeads)
	assert.Equal(t, retrieval.DefaultHeadDim, cfg.HeadDim)
	assert.Equal(t, DefaultTopK, cfg.TopK)
	assert.Equal(t, DefaultCandidatePool, cfg.CandidatePool)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database_path: /var/lib/ysrn
embedding_model: nomic-embed-text
embedding_dimension: 384
noise_threshold: 0
relevance_threshold: 0.5
block_size: 4
gate_seed: 1234
top_k: 5
log_level: DEBUG
`)

	cfg, errs := Load(path)
	require.Empty(t, errs)

	assert.Equal(t, "/var/lib/ysrn", cfg.DatabasePath)
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
	assert.Equal(t, 384, cfg.EmbeddingDimension)
	assert.Zero(t, cfg.NoiseThreshold)
	assert.Equal(t, 0.5, cfg.RelevanceThreshold)
	assert.Equal(t, 4, cfg.BlockSize)
	assert.Equal(t, uint64(1234), cfg.GateSeed)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "top_k: 5\nembedding_host: http://file:11434/v1\n")
	t.Setenv("YSRN_TOP_K", "7")
	t.Setenv("YSRN_API_TOKEN", "secret-token-value")
	t.Setenv("YSRN_GATE_BIAS", "-1.5")

	cfg, errs := Load(path)
	require.Empty(t, errs)

	assert.Equal(t, 7, cfg.TopK)
	assert.Equal(t, "http://file:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "secret-token-value", cfg.APIToken)
	assert.Equal(t, -1.5, cfg.GateBias)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, errs := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Nil(t, cfg)
	require.Len(t, errs, 1)
}

func TestLoad_InvalidEnvNumber(t *testing.T) {
	t.Setenv("YSRN_EMBEDDING_DIMENSION", "lots")
	t.Setenv("YSRN_NOISE_THRESHOLD", "low")

	_, errs := Load("")
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrInvalidNumber)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing database path", func(c *Config) { c.DatabasePath = "" }, ErrMissingDatabasePath},
		{"missing host", func(c *Config) { c.EmbeddingHost = "" }, ErrMissingEmbeddingHost},
		{"missing model", func(c *Config) { c.EmbeddingModel = "" }, ErrMissingModel},
		{"zero dimension", func(c *Config) { c.EmbeddingDimension = 0 }, ErrInvalidDimension},
		{"noise above one", func(c *Config) { c.NoiseThreshold = 1.5 }, ErrInvalidThreshold},
		{"negative relevance", func(c *Config) { c.RelevanceThreshold = -0.1 }, ErrInvalidThreshold},
		{"zero block size", func(c *Config) { c.BlockSize = 0 }, ErrInvalidBlockSize},
		{"zero heads", func(c *Config) { c.NumHeads = 0 }, ErrInvalidHeads},
		{"zero top k", func(c *Config) { c.TopK = 0 }, ErrInvalidTopK},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.ErrorIs(t, errs[0], tt.want)
		})
	}
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.EmbeddingDimension = 384
	cfg.GateSeed = 9
	cfg.NumHeads = 4
	cfg.HeadDim = 16

	aiCfg := cfg.AIConfig()
	assert.Equal(t, cfg.EmbeddingHost, aiCfg.EmbeddingHost)
	assert.Equal(t, 384, aiCfg.Dimension)

	assert.Equal(t, retrieval.GateInit{Seed: 9, Scale: cfg.GateScale, Bias: cfg.GateBias}, cfg.GateInit())
	assert.Equal(t, 64, cfg.GateWidth())

	e, err := decompose.NewEngine(cfg.EngineOptions()...)
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestLogSummary_MasksToken(t *testing.T) {
	cfg := Default()
	cfg.APIToken = "sk-abcdefghijkl"
	summary := cfg.LogSummary()
	assert.Equal(t, "sk-a****", summary["api_token"])

	cfg.APIToken = ""
	assert.Equal(t, "<not set>", cfg.LogSummary()["api_token"])
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "abcd****", maskSecret("abcdefgh"))
}
