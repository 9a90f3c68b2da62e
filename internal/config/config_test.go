package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PARSER_PROVIDER", "")
	t.Setenv("MAX_UPLOAD_BYTES", "")
	t.Setenv("LLAMA_NUM_WORKERS", "")
	t.Setenv("UPLOAD_DIR", "")

	cfg := Load()

	assert.Equal(t, ParserLlamaCloud, cfg.Parser.Provider)
	assert.Equal(t, int64(20<<20), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 1, cfg.Llama.NumWorkers)
	assert.Equal(t, "uploads", cfg.Storage.UploadDir)
	assert.Equal(t, []string{"AI-generated", "human-written"}, cfg.Classifier.Labels)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PARSER_PROVIDER", "LOCAL")
	t.Setenv("LLAMA_TIMEOUT", "90s")
	t.Setenv("METADATA_ENABLED", "false")
	t.Setenv("LLAMA_NUM_WORKERS", "not-a-number")

	cfg := Load()

	assert.Equal(t, ParserLocal, cfg.Parser.Provider)
	assert.Equal(t, 90*time.Second, cfg.Llama.Timeout)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 1, cfg.Llama.NumWorkers)
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		t.Helper()
		t.Setenv("LLAMA_CLOUD_API_KEY", "llx-test")
		t.Setenv("DATABASE_URL", "postgres://localhost/teams")
		t.Setenv("PARSER_PROVIDER", "")
		t.Setenv("CLASSIFIER_PROVIDER", "")
		t.Setenv("METADATA_ENABLED", "")
		return Load()
	}

	t.Run("complete config", func(t *testing.T) {
		require.NoError(t, valid(t).Validate())
	})

	t.Run("missing parser key", func(t *testing.T) {
		cfg := valid(t)
		cfg.Llama.APIKey = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LLAMA_CLOUD_API_KEY")
	})

	t.Run("local parser needs no key", func(t *testing.T) {
		cfg := valid(t)
		cfg.Llama.APIKey = ""
		cfg.Parser.Provider = ParserLocal
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing database url", func(t *testing.T) {
		cfg := valid(t)
		cfg.Database.URL = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("metadata disabled", func(t *testing.T) {
		cfg := valid(t)
		cfg.Database.URL = ""
		cfg.Database.Enabled = false
		assert.NoError(t, cfg.Validate())
	})

	t.Run("openai classifier needs key", func(t *testing.T) {
		cfg := valid(t)
		cfg.Classifier.Provider = ClassifierOpenAI
		cfg.Classifier.OpenAIAPIKey = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	})

	t.Run("reports all problems", func(t *testing.T) {
		cfg := valid(t)
		cfg.Llama.APIKey = ""
		cfg.Database.URL = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LLAMA_CLOUD_API_KEY")
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})
}
