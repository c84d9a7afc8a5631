package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"WARN":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
		"noisy": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestStartupLoggerEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	s := NewStartupLogger("profile-agent").
		Version("1.2.3").
		Resource("dynamoTables", "runs", "agent-runs").
		Resource("s3Buckets", "screenshots", "").
		SSMParam("geminiKey", "/agent/gemini").
		Feature("liking", true).
		Config("port", "3000").
		InitDuration(250 * time.Millisecond)
	s.event(logger.Info()).Msg("Startup complete")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	service := got["service"].(map[string]any)
	if service["name"] != "profile-agent" || service["version"] != "1.2.3" {
		t.Errorf("unexpected service %v", service)
	}
	resources := got["resources"].(map[string]any)
	if _, ok := resources["s3Buckets"]; ok {
		t.Error("expected empty resource names to be skipped")
	}
	if resources["ssmParams"].(map[string]any)["geminiKey"] != "/agent/gemini" {
		t.Errorf("unexpected ssm params %v", resources["ssmParams"])
	}
	if got["features"].(map[string]any)["liking"] != true {
		t.Errorf("expected liking feature, got %v", got["features"])
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("AGENT_TEST_VALUE", "")
	if got := EnvOrDefault("AGENT_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %s", got)
	}
	t.Setenv("AGENT_TEST_VALUE", "set")
	if got := EnvOrDefault("AGENT_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("expected set, got %s", got)
	}
}
