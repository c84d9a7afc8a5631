// Package webhook provides the HTTP trigger for profile batches.
//
// A POST carries either a single profileUrl or a profiles array plus
// optional per-run feature switches. The response is held open until the
// batch finishes and then carries the batch report:
//
//	200  batch completed
//	500  batch failed (report attached) or internal fault
//	409  a batch is already running
//	400  invalid JSON, schema violation, or no profile given
//
// When a secret is configured the body must be signed with
// X-Hub-Signature-256 (HMAC-SHA256 of the body, hex encoded, "sha256="
// prefix).
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/fpang/profile-agent/internal/config"
	"github.com/fpang/profile-agent/internal/jobs"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

const payloadSchema = `{
  "type": "object",
  "properties": {
    "profileUrl": {"type": "string"},
    "username": {"type": "string"},
    "timestamp": {"type": "string"},
    "message": {"type": "string"},
    "profiles": {"type": "array", "items": {"type": "string"}},
    "enableLiking": {"type": "boolean"},
    "enableCommenting": {"type": "boolean"},
    "enableScreenshots": {"type": "boolean"},
    "enableContentFiltering": {"type": "boolean"}
  }
}`

var schema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(payloadSchema))
	if err != nil {
		panic(err)
	}
	return s
}()

// Payload is the trigger request body.
type Payload struct {
	ProfileURL             string   `json:"profileUrl,omitempty"`
	Username               string   `json:"username,omitempty"`
	Timestamp              string   `json:"timestamp,omitempty"`
	Message                string   `json:"message,omitempty"`
	Profiles               []string `json:"profiles,omitempty"`
	EnableLiking           *bool    `json:"enableLiking,omitempty"`
	EnableCommenting       *bool    `json:"enableCommenting,omitempty"`
	EnableScreenshots      *bool    `json:"enableScreenshots,omitempty"`
	EnableContentFiltering *bool    `json:"enableContentFiltering,omitempty"`
}

// Request converts the payload into a batch request.
func (p Payload) Request() jobs.Request {
	return jobs.Request{
		ProfileURL: p.ProfileURL,
		Profiles:   p.Profiles,
		Overrides: config.Overrides{
			Liking:           p.EnableLiking,
			Commenting:       p.EnableCommenting,
			Screenshots:      p.EnableScreenshots,
			ContentFiltering: p.EnableContentFiltering,
		},
	}
}

// Triggerer starts batches. *jobs.Controller implements it.
type Triggerer interface {
	Trigger(ctx context.Context, req jobs.Request) (*jobs.Ticket, error)
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Handler serves batch triggers.
type Handler struct {
	trigger Triggerer
	secret  string
}

// NewHandler creates a trigger handler. An empty secret disables signature
// checks.
func NewHandler(trigger Triggerer, secret string) *Handler {
	return &Handler{trigger: trigger, secret: secret}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error().Err(err).Msg("Trigger: failed to read body")
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "failed to read body"})
		return
	}
	defer r.Body.Close()

	if h.secret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if signature == "" || !h.verifySignature(body, signature) {
			log.Warn().Msg("Trigger: missing or invalid signature")
			writeJSON(w, http.StatusForbidden, errorBody{Message: "invalid signature"})
			return
		}
	}

	payload, err := decode(body)
	if err != nil {
		log.Warn().Err(err).Msg("Trigger: rejected payload")
		writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
		return
	}

	log.Info().
		Str("profileUrl", payload.ProfileURL).
		Str("username", payload.Username).
		Str("timestamp", payload.Timestamp).
		Str("message", payload.Message).
		Int("profiles", len(payload.Profiles)).
		Interface("enableLiking", payload.EnableLiking).
		Interface("enableCommenting", payload.EnableCommenting).
		Interface("enableScreenshots", payload.EnableScreenshots).
		Interface("enableContentFiltering", payload.EnableContentFiltering).
		Msg("Trigger received")

	ticket, err := h.trigger.Trigger(r.Context(), payload.Request())
	switch {
	case errors.Is(err, jobs.ErrBusy):
		writeJSON(w, http.StatusConflict, errorBody{Message: "Processing is already in progress"})
		return
	case errors.Is(err, jobs.ErrNoProfiles):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Either profileUrl or profiles array is required"})
		return
	case err != nil:
		log.Error().Err(err).Msg("Trigger failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Internal server error"})
		return
	}

	select {
	case report, ok := <-ticket.Done:
		if !ok {
			writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Internal server error"})
			return
		}
		status := http.StatusOK
		if !report.Success {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, report)
		log.Info().Str("runId", report.RunID).Int("status", status).Msg("Trigger response sent")
	case <-r.Context().Done():
		log.Warn().Str("runId", ticket.RunID).Msg("Client went away before the batch finished; the batch continues")
	}
}

// decode validates body against the payload schema and unmarshals it.
func decode(body []byte) (Payload, error) {
	var p Payload
	if len(body) == 0 {
		return p, errors.New("empty body")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return p, errors.New("invalid JSON")
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return p, errors.New("invalid payload: " + strings.Join(errs, "; "))
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return p, errors.New("invalid JSON")
	}
	return p, nil
}

// verifySignature validates an X-Hub-Signature-256 header ("sha256=<hex>")
// against the HMAC-SHA256 of the body.
func (h *Handler) verifySignature(body []byte, header string) bool {
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}

	receivedBytes, err := hex.DecodeString(header[len(prefix):])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	return hmac.Equal(receivedBytes, mac.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
