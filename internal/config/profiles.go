package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// profileHost must appear in every profile URL.
const profileHost = "instagram.com/"

// LoadProfiles reads a JSON array of profile URLs. Entries that are not
// profile URLs are skipped with a warning.
func LoadProfiles(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("profiles file must be a JSON array of URLs: %w", err)
	}

	profiles := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if !strings.Contains(p, profileHost) {
			log.Warn().Str("entry", p).Msg("Skipping invalid profile URL")
			continue
		}
		profiles = append(profiles, p)
	}

	log.Info().Int("profiles", len(profiles)).Str("path", path).Msg("Profiles loaded")
	return profiles, nil
}
