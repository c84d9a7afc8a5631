package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestDefault(t *testing.T) {
	d := Default()
	assert.True(t, d.Features.Liking)
	assert.False(t, d.Features.Commenting)
	assert.False(t, d.Features.Screenshots)
	assert.False(t, d.Features.ContentFiltering)
	assert.Equal(t, Range{Min: 1000, Max: 2000}, d.Settings.WaitBetweenActions)
	assert.Equal(t, Range{Min: 15000, Max: 25000}, d.Settings.WaitBetweenProfiles)
	assert.Equal(t, 60.0, d.ContentFilter.MinRelevanceScore)
	assert.NotContains(t, d.ContentFilter.AllowedCategories, "other")
	assert.NotContains(t, d.ContentFilter.AllowedCategories, "not_relevant")
	assert.Equal(t, 30000, d.Webhook.Timeout)
}

func TestWithOverridesReturnsCopy(t *testing.T) {
	base := Default()
	got := base.WithOverrides(Overrides{Liking: boolPtr(false), ContentFiltering: boolPtr(true)})

	assert.False(t, got.Features.Liking)
	assert.True(t, got.Features.ContentFiltering)
	assert.False(t, got.Features.Commenting, "nil override must keep the configured value")

	assert.True(t, base.Features.Liking, "base must not change")
	got.ContentFilter.AllowedCategories[0] = "mutated"
	assert.Equal(t, "residential", base.ContentFilter.AllowedCategories[0])
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, Default().Features, cfg.Features)
	assert.Equal(t, Default().Settings, cfg.Settings)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interaction.json")
	body := `{
  "features": {"liking": false, "commenting": true, "contentFiltering": true},
  "settings": {"waitBetweenActions": {"min": 3000, "max": 500}},
  "contentFilter": {"minRelevanceScore": 75, "allowedCategories": ["rental", " "], "excludeKeywords": ["giveaway"]},
  "webhook": {"url": "https://hooks.example/shots"}
}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Features.Liking)
	assert.True(t, cfg.Features.Commenting)
	assert.True(t, cfg.Features.ContentFiltering)
	assert.Equal(t, Range{Min: 500, Max: 3000}, cfg.Settings.WaitBetweenActions, "inverted range is swapped")
	assert.Equal(t, Range{Min: 15000, Max: 25000}, cfg.Settings.WaitBetweenProfiles, "absent keys keep defaults")
	assert.Equal(t, 75.0, cfg.ContentFilter.MinRelevanceScore)
	assert.Equal(t, []string{"rental"}, cfg.ContentFilter.AllowedCategories)
	assert.Equal(t, []string{"giveaway"}, cfg.ContentFilter.ExcludeKeywords)
	assert.Equal(t, "https://hooks.example/shots", cfg.Webhook.URL)
	assert.Equal(t, 30000, cfg.Webhook.Timeout)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("AGENT_FEATURES_COMMENTING", "true")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Features.Commenting)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "interaction.json")
	cfg := Default()
	cfg.Features.Screenshots = true
	cfg.Webhook.URL = "https://hooks.example/x"

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
