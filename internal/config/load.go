package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. AGENT_FEATURES_LIKING.
const EnvPrefix = "AGENT"

// LoadEnvFile loads a .env file from the working directory if one exists.
// Variables already set in the environment win.
func LoadEnvFile() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file")
		return
	}
	log.Debug().Msg("Loaded .env file")
}

// Load reads the interaction configuration from path (JSON or YAML by
// extension), layered over Default and under AGENT_* environment overrides.
// A missing file is not an error.
func Load(path string) (Interaction, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return Interaction{}, fmt.Errorf("read config %s: %w", path, err)
			}
			log.Warn().Str("path", path).Msg("Config file not found, using defaults")
		}
	}

	var cfg Interaction
	if err := v.Unmarshal(&cfg); err != nil {
		return Interaction{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes cfg to path as indented JSON, replacing the file atomically.
func Save(path string, cfg Interaction) error {
	cfg.normalize()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Interaction) {
	v.SetDefault("features.liking", d.Features.Liking)
	v.SetDefault("features.commenting", d.Features.Commenting)
	v.SetDefault("features.screenshots", d.Features.Screenshots)
	v.SetDefault("features.contentFiltering", d.Features.ContentFiltering)

	v.SetDefault("settings.waitBetweenActions.min", d.Settings.WaitBetweenActions.Min)
	v.SetDefault("settings.waitBetweenActions.max", d.Settings.WaitBetweenActions.Max)
	v.SetDefault("settings.waitBetweenProfiles.min", d.Settings.WaitBetweenProfiles.Min)
	v.SetDefault("settings.waitBetweenProfiles.max", d.Settings.WaitBetweenProfiles.Max)

	v.SetDefault("contentFilter.minRelevanceScore", d.ContentFilter.MinRelevanceScore)
	v.SetDefault("contentFilter.allowedCategories", d.ContentFilter.AllowedCategories)
	v.SetDefault("contentFilter.excludeKeywords", d.ContentFilter.ExcludeKeywords)

	v.SetDefault("webhook.url", d.Webhook.URL)
	v.SetDefault("webhook.timeout", d.Webhook.Timeout)
}
