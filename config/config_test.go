package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/profile"
)

func memoryViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.Set("app.store", "memory")
	v.Set("llm.api_key", "sk-test")
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(memoryViper())
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, profile.DedupNone, cfg.Profile.DedupPolicy)
	assert.Equal(t, time.UTC, cfg.Gamification.Location)
	assert.True(t, cfg.Features.Tutor)
	assert.Empty(t, cfg.HTTP.APIKeyHashes)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("STUDYTRACK_APP_STORE", "memory")
	t.Setenv("STUDYTRACK_LLM_API_KEY", "sk-env")
	t.Setenv("STUDYTRACK_HTTP_PORT", "9000")
	t.Setenv("STUDYTRACK_HTTP_API_KEY_HASHES", "hash-a, hash-b")
	t.Setenv("STUDYTRACK_PROFILE_DEDUP", "case_insensitive")
	t.Setenv("STUDYTRACK_GAMIFICATION_TIMEZONE", "America/New_York")

	v, err := New(filepath.Join(t.TempDir(), "missing-ok.yaml"))
	require.Error(t, err, "an explicit config file must exist")
	assert.Nil(t, v)

	t.Chdir(t.TempDir())
	v, err = New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, []string{"hash-a", "hash-b"}, cfg.HTTP.APIKeyHashes)
	assert.Equal(t, profile.DedupCaseInsensitive, cfg.Profile.DedupPolicy)
	assert.Equal(t, "America/New_York", cfg.Gamification.Location.String())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studytrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  store: memory
llm:
  api_key: sk-file
  model: gpt-4o-mini
http:
  allowed_origins: [https://app.example.com]
gamification:
  catalog_path: /etc/studytrack/badges.yaml
`), 0o600))

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "/etc/studytrack/badges.yaml", cfg.Gamification.CatalogPath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
	}{
		{"unknown store", map[string]any{"app.store": "sqlite"}},
		{"unknown environment", map[string]any{"app.environment": "qa"}},
		{"bad port", map[string]any{"http.port": 0}},
		{"bad dedup", map[string]any{"profile.dedup": "fuzzy"}},
		{"bad timezone", map[string]any{"gamification.timezone": "Mars/Olympus"}},
		{"memory in production", map[string]any{"app.environment": "production", "http.api_key_hashes": []string{"h"}}},
		{"production without keys", map[string]any{"app.environment": "production", "app.store": "postgres"}},
		{"tutor without llm key", map[string]any{"llm.api_key": ""}},
		{"no merge attempts", map[string]any{"profile.max_merge_attempts": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := memoryViper()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestValidate_LLMNotNeededWhenFeaturesOff(t *testing.T) {
	v := memoryViper()
	v.Set("llm.api_key", "")
	v.Set("features.tutor", false)
	v.Set("features.import", false)
	_, err := Load(v)
	assert.NoError(t, err)
}
