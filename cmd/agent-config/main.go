package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fpang/profile-agent/internal/config"
	"github.com/fpang/profile-agent/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	showStatus bool
	webhookURL string
	clearHook  bool

	enable  = map[string]*bool{}
	disable = map[string]*bool{}
)

// featureNames lists the toggles in display order.
var featureNames = []string{"liking", "commenting", "screenshots", "content-filtering"}

var rootCmd = &cobra.Command{
	Use:   "agent-config",
	Short: "Toggle profile-agent features and show the current configuration",
	Long: `Edit the interaction config file used by profile-agent.

Changes apply to the next batch; a running batch keeps the settings it
started with.

Examples:
  agent-config --status
  agent-config --enable-commenting --disable-liking
  agent-config --set-webhook-url https://example.com/hook
  agent-config --clear-webhook-url`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", logging.EnvOrDefault("AGENT_CONFIG_FILE", "agent.json"), "Interaction config file")
	rootCmd.Flags().BoolVar(&showStatus, "status", false, "Print the current configuration")
	rootCmd.Flags().StringVar(&webhookURL, "set-webhook-url", "", "Deliver screenshots to this URL")
	rootCmd.Flags().BoolVar(&clearHook, "clear-webhook-url", false, "Stop delivering screenshots to a webhook")
	for _, name := range featureNames {
		enable[name] = rootCmd.Flags().Bool("enable-"+name, false, "Enable "+name)
		disable[name] = rootCmd.Flags().Bool("disable-"+name, false, "Disable "+name)
		rootCmd.MarkFlagsMutuallyExclusive("enable-"+name, "disable-"+name)
	}
	rootCmd.MarkFlagsMutuallyExclusive("set-webhook-url", "clear-webhook-url")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}

	changed := applyToggles(&cfg)
	switch {
	case webhookURL != "":
		cfg.Webhook.URL = webhookURL
		changed = true
	case clearHook:
		cfg.Webhook.URL = ""
		changed = true
	}

	if changed {
		if err := config.Save(configPath, cfg); err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("Failed to save config")
		}
		log.Info().Str("path", configPath).Msg("Configuration updated")
	}
	if showStatus || !changed {
		printStatus(os.Stdout, cfg)
	}
}

// applyToggles applies the --enable-*/--disable-* flags and reports whether
// any was set.
func applyToggles(cfg *config.Interaction) bool {
	changed := false
	for _, name := range featureNames {
		var value bool
		switch {
		case *enable[name]:
			value = true
		case *disable[name]:
			value = false
		default:
			continue
		}
		*featureField(cfg, name) = value
		changed = true
	}
	return changed
}

func featureField(cfg *config.Interaction, name string) *bool {
	switch name {
	case "liking":
		return &cfg.Features.Liking
	case "commenting":
		return &cfg.Features.Commenting
	case "screenshots":
		return &cfg.Features.Screenshots
	default:
		return &cfg.Features.ContentFiltering
	}
}

func printStatus(w io.Writer, cfg config.Interaction) {
	fmt.Fprintln(w, "Features:")
	for _, name := range featureNames {
		state := "disabled"
		if *featureField(&cfg, name) {
			state = "enabled"
		}
		fmt.Fprintf(w, "  %-18s %s\n", name, state)
	}

	a, p := cfg.Settings.WaitBetweenActions, cfg.Settings.WaitBetweenProfiles
	fmt.Fprintln(w, "Pacing:")
	fmt.Fprintf(w, "  %-18s %d-%d ms\n", "between actions", a.Min, a.Max)
	fmt.Fprintf(w, "  %-18s %d-%d ms\n", "between profiles", p.Min, p.Max)

	f := cfg.ContentFilter
	fmt.Fprintln(w, "Content filter:")
	fmt.Fprintf(w, "  %-18s %.0f\n", "min score", f.MinRelevanceScore)
	fmt.Fprintf(w, "  %-18s %s\n", "categories", joinOrNone(f.AllowedCategories))
	fmt.Fprintf(w, "  %-18s %s\n", "excluded", joinOrNone(f.ExcludeKeywords))

	hook := cfg.Webhook.URL
	if hook == "" {
		hook = "(not set)"
	}
	fmt.Fprintln(w, "Webhook:")
	fmt.Fprintf(w, "  %-18s %s\n", "url", hook)
	fmt.Fprintf(w, "  %-18s %d ms\n", "timeout", cfg.Webhook.Timeout)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
