package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("DOTENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.App.Port)
	assert.Equal(t, "s3", cfg.Storage.Provider)
	assert.Equal(t, int64(20*1000*1000), cfg.Storage.MaxUploadSizeBytes())
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 4000, cfg.LLM.MaxContextTokens)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, "0.0.0.0:3000", cfg.HTTPAddr())
}

func TestLoadFileThenEnv(t *testing.T) {
	isolate(t)
	path := writeFile(t, "config.toml", `
[app]
port = 9090

[storage]
provider = "gcs"
bucket = "notes"
max_upload_size = "5MB"

[extract]
provider = "pdf"

[mysql]
user = "thinkr"
password = "pw"
host = "db"
port = 3307
db = "study"
params = "parseTime=true"
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "7070")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.App.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.App.CORSOrigins)
	assert.Equal(t, "gcs", cfg.Storage.Provider)
	assert.Equal(t, "notes", cfg.Storage.Bucket)
	assert.Equal(t, int64(5*1000*1000), cfg.Storage.MaxUploadSizeBytes())
	assert.Equal(t, "thinkr:pw@tcp(db:3307)/study?parseTime=true", cfg.MySQLDSN())
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	t.Setenv("DOTENV_FILE", writeFile(t, ".env", "RAG_TOP_K=8\n"))
	t.Cleanup(func() { os.Unsetenv("RAG_TOP_K") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.RAG.TopK)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad size":            {"STORAGE_MAX_UPLOAD_SIZE": "lots"},
		"unknown storage":     {"STORAGE_PROVIDER": "ftp"},
		"textract needs s3":   {"STORAGE_PROVIDER": "gcs", "EXTRACT_PROVIDER": "textract"},
		"unknown extractor":   {"EXTRACT_PROVIDER": "tesseract"},
		"empty jwt secret":    {"JWT_SECRET": " "},
		"non-positive top k":  {"RAG_TOP_K": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			isolate(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
