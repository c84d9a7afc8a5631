package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fpang/profile-agent/internal/auth"
	"github.com/fpang/profile-agent/internal/batch"
	"github.com/fpang/profile-agent/internal/bootstrap"
	"github.com/fpang/profile-agent/internal/browser"
	"github.com/fpang/profile-agent/internal/config"
	"github.com/fpang/profile-agent/internal/interaction"
	"github.com/fpang/profile-agent/internal/jobs"
	"github.com/fpang/profile-agent/internal/logging"
	"github.com/fpang/profile-agent/internal/oracle"
	"github.com/fpang/profile-agent/internal/relevance"
	"github.com/fpang/profile-agent/internal/schedule"
	"github.com/fpang/profile-agent/internal/server"
	"github.com/fpang/profile-agent/internal/snapshot"
	"github.com/fpang/profile-agent/internal/webhook"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// lockTTL bounds how long a crashed instance can hold the shared batch lock.
// A live holder keeps extending it.
const lockTTL = 5 * time.Minute

// CLI flags
var (
	portFlag        int
	modelFlag       string
	configFlag      string
	profilesFlag    string
	scheduleFlag    string
	headlessFlag    bool
	userDataDirFlag string
	redisAddrFlag   string
	screenshotDir   string
	onceFlag        bool
)

const webhookSecretEnv = "WEBHOOK_SECRET"

var rootCmd = &cobra.Command{
	Use:   "profile-agent",
	Short: "Visit social profiles, like and comment on relevant content",
	Long: `Profile Agent visits a list of profiles in a real browser, picks one
relevant piece of content on each, and optionally likes and comments on it.

Batches are triggered with POST /webhook, on a schedule, or once from the
command line.

Examples:
  profile-agent
  profile-agent --port 3000 --config agent.json
  profile-agent --profiles-file profiles.json --schedule "@every 90m"
  profile-agent --profiles-file profiles.json --once`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", envInt("PORT", 3000), "Port to listen on")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", logging.EnvOrDefault("GEMINI_MODEL", oracle.DefaultModel), "Gemini model to use")
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", logging.EnvOrDefault("AGENT_CONFIG_FILE", "agent.json"), "Interaction config file (JSON or YAML)")
	rootCmd.Flags().StringVar(&profilesFlag, "profiles-file", os.Getenv("AGENT_PROFILES_FILE"), "JSON array of profile URLs for scheduled or one-shot batches")
	rootCmd.Flags().StringVar(&scheduleFlag, "schedule", "", `Cron spec for scheduled batches, e.g. "@every 90m" (requires --profiles-file)`)
	rootCmd.Flags().BoolVar(&headlessFlag, "headless", envBool("CHROME_HEADLESS", true), "Run Chrome headless")
	rootCmd.Flags().StringVar(&userDataDirFlag, "user-data-dir", os.Getenv("CHROME_USER_DATA_DIR"), "Chrome profile directory holding the logged-in session")
	rootCmd.Flags().StringVar(&redisAddrFlag, "redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for a batch lock shared across instances")
	rootCmd.Flags().StringVar(&screenshotDir, "screenshot-dir", os.Getenv("SCREENSHOT_DIR"), "Also write profile screenshots to this directory")
	rootCmd.Flags().BoolVar(&onceFlag, "once", false, "Run one batch from --profiles-file, print the report and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	start := time.Now()
	config.LoadEnvFile()
	logging.Init()

	if onceFlag && profilesFlag == "" {
		log.Fatal().Msg("--once requires --profiles-file")
	}
	if scheduleFlag != "" && profilesFlag == "" {
		log.Fatal().Msg("--schedule requires --profiles-file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var clients bootstrap.AWSClients
	var params auth.ParameterGetter
	if bootstrap.NeedsAWS() {
		clients = bootstrap.InitAWS(ctx)
		params = clients.SSM
	}
	apiKey, err := auth.GetAPIKey(ctx, params)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get API key")
	}
	genaiClient, err := oracle.NewGeminiClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	classifier := oracle.NewGemini(genaiClient, modelFlag)

	runs := bootstrap.InitRunStore(clients)
	shots := bootstrap.InitScreenshotSink(clients, screenshotDir)

	gate, redisClient := newGate()
	if redisClient != nil {
		defer redisClient.Close()
	}

	runner := newRunner(classifier, shots)
	controller := jobs.NewController(ctx, runner, func() (config.Interaction, error) {
		return config.Load(configFlag)
	}, jobs.Options{Gate: gate, Recorder: runs})

	startup := logging.NewStartupLogger("profile-agent").
		Resource("dynamoTables", "runs", os.Getenv(bootstrap.EnvRunsTable)).
		Resource("s3Buckets", "screenshots", os.Getenv(bootstrap.EnvBucket)).
		Resource("redis", "lock", redisAddrFlag).
		Config("model", modelFlag).
		Config("configFile", configFlag).
		Config("profilesFile", profilesFlag).
		Config("schedule", scheduleFlag).
		Config("port", strconv.Itoa(portFlag)).
		Feature("headless", headlessFlag).
		Feature("once", onceFlag).
		Feature("sharedLock", redisClient != nil)
	if p := os.Getenv(bootstrap.EnvSSMParam); p != "" {
		startup.SSMParam("geminiKey", p)
	}
	if cfg, err := config.Load(configFlag); err == nil {
		startup.Feature("liking", cfg.Features.Liking).
			Feature("commenting", cfg.Features.Commenting).
			Feature("screenshots", cfg.Features.Screenshots).
			Feature("contentFiltering", cfg.Features.ContentFiltering)
	}
	startup.InitDuration(time.Since(start)).Log()

	profiles := func() ([]string, error) { return config.LoadProfiles(profilesFlag) }

	if onceFlag {
		os.Exit(runOnce(ctx, controller, profiles))
	}

	var loop *schedule.Loop
	if scheduleFlag != "" {
		loop = schedule.New(scheduleFlag, controller, profiles)
		if err := loop.Start(ctx, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to start schedule")
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", portFlag),
		Handler:           server.New(controller, webhook.NewHandler(controller, os.Getenv(webhookSecretEnv)), runs).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		if loop != nil {
			loop.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}
	}()

	log.Info().Int("port", portFlag).Msg("Starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}

	// The root context is cancelled by now, so a running batch stops at its
	// next pacing wait; wait for it to report.
	controller.Wait()
	log.Info().Msg("Shutdown complete")
}

// newGate returns a Redis-backed gate when --redis-addr is set.
func newGate() (jobs.Gate, *redis.Client) {
	if redisAddrFlag == "" {
		return &jobs.LocalGate{}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddrFlag})
	return jobs.NewRedisGate(client, os.Getenv("REDIS_LOCK_KEY"), lockTTL), client
}

// newRunner builds a batch runner that starts a fresh Chrome per batch.
func newRunner(classifier oracle.Classifier, shots snapshot.Sink) *batch.Runner {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	pacer := interaction.NewPacer(rng, nil)
	selector := relevance.NewSelector(relevance.NewScorer(classifier), rng)

	open := func(ctx context.Context) (browser.Page, func(), error) {
		chrome, err := browser.NewChrome(ctx, browser.ChromeOptions{
			UserDataDir: userDataDirFlag,
			Headless:    headlessFlag,
		})
		if err != nil {
			return nil, nil, err
		}
		return chrome, chrome.Close, nil
	}
	visitor := func(page browser.Page) batch.ProfileVisitor {
		return interaction.NewVisitor(page, selector, classifier, pacer, interaction.Options{Snapshots: shots})
	}
	return batch.NewRunner(open, visitor, pacer)
}

// runOnce runs a single batch and prints its report. The exit code is 0
// only when the batch succeeded.
func runOnce(ctx context.Context, controller *jobs.Controller, profiles schedule.ProfileSource) int {
	list, err := profiles()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load profiles")
		return 1
	}
	ticket, err := controller.Trigger(ctx, jobs.Request{Profiles: list})
	if err != nil {
		log.Error().Err(err).Msg("Failed to start batch")
		return 1
	}
	report := <-ticket.Done

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Error().Err(err).Msg("Failed to print report")
	}
	if !report.Success {
		return 1
	}
	return 0
}

func envInt(name string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(name)); err == nil {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(name)); err == nil {
		return v
	}
	return def
}
