package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// UserAgent identifies the agent to webhook receivers.
const UserAgent = "Instagram-AI-Agent/1.0"

// WebhookSink posts screenshots as base64 JSON to a URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink returns a sink posting to url with a per-request timeout.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	ProfileURL string          `json:"profileUrl"`
	Username   string          `json:"username"`
	Timestamp  string          `json:"timestamp"`
	Filename   string          `json:"filename"`
	Image      webhookImage    `json:"image"`
	Metadata   webhookMetadata `json:"metadata"`
}

type webhookImage struct {
	Data string `json:"data"`
	Type string `json:"type"`
}

type webhookMetadata struct {
	FileSize   int    `json:"fileSize"`
	CapturedAt string `json:"capturedAt"`
}

func (w *WebhookSink) Deliver(ctx context.Context, shot Shot) error {
	stamp := shot.TakenAt.UTC().Format(isoMillis)
	body, err := json.Marshal(webhookPayload{
		ProfileURL: shot.ProfileURL,
		Username:   shot.Username,
		Timestamp:  stamp,
		Filename:   shot.Filename,
		Image: webhookImage{
			Data: base64.StdEncoding.EncodeToString(shot.Data),
			Type: "image/jpeg",
		},
		Metadata: webhookMetadata{
			FileSize:   len(shot.Data),
			CapturedAt: stamp,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal screenshot payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build screenshot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send screenshot: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("screenshot webhook returned %s", resp.Status)
	}

	log.Info().
		Str("username", shot.Username).
		Int("status", resp.StatusCode).
		Msg("Screenshot sent to webhook")
	return nil
}
