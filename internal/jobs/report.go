package jobs

import (
	"time"

	"github.com/fpang/profile-agent/internal/interaction"
	"github.com/rs/zerolog/log"
)

// Report summarizes one batch.
type Report struct {
	RunID                  string               `json:"runId" dynamodbav:"runId"`
	Success                bool                 `json:"success" dynamodbav:"success"`
	Message                string               `json:"message" dynamodbav:"message"`
	Timestamp              string               `json:"timestamp" dynamodbav:"timestamp"`
	TotalProfiles          int                  `json:"totalProfiles" dynamodbav:"totalProfiles"`
	SuccessfulInteractions int                  `json:"successfulInteractions" dynamodbav:"successfulInteractions"`
	FailedInteractions     int                  `json:"failedInteractions" dynamodbav:"failedInteractions"`
	TotalLikes             int                  `json:"totalLikes" dynamodbav:"totalLikes"`
	TotalComments          int                  `json:"totalComments" dynamodbav:"totalComments"`
	Results                []interaction.Result `json:"results" dynamodbav:"results"`
}

// BuildReport aggregates results. runErr is the batch-level failure, if any;
// a batch with failed profiles but no runErr still succeeds.
func BuildReport(runID string, results []interaction.Result, runErr error, now time.Time) Report {
	r := Report{
		RunID:         runID,
		Success:       runErr == nil,
		Timestamp:     now.UTC().Format("2006-01-02T15:04:05.000Z"),
		TotalProfiles: len(results),
		Results:       results,
	}
	if r.Results == nil {
		r.Results = []interaction.Result{}
	}
	if runErr == nil {
		r.Message = "Processing completed successfully"
	} else {
		r.Message = "Processing failed: " + runErr.Error()
	}
	for _, res := range results {
		if res.Success {
			r.SuccessfulInteractions++
		} else {
			r.FailedInteractions++
		}
		if res.Liked {
			r.TotalLikes++
		}
		if res.Commented {
			r.TotalComments++
		}
	}
	return r
}

// LogSummary writes the report totals followed by one line per profile.
func LogSummary(r Report) {
	log.Info().
		Str("runId", r.RunID).
		Bool("success", r.Success).
		Int("totalProfiles", r.TotalProfiles).
		Int("successful", r.SuccessfulInteractions).
		Int("failed", r.FailedInteractions).
		Int("likes", r.TotalLikes).
		Int("comments", r.TotalComments).
		Msg("Batch summary")

	for i, res := range r.Results {
		ev := log.Info().
			Int("index", i+1).
			Str("profile", res.ProfileURL).
			Bool("success", res.Success).
			Bool("liked", res.Liked).
			Bool("commented", res.Commented)
		if res.PostURL != "" {
			ev = ev.Str("postUrl", res.PostURL)
		}
		if res.Comment != "" {
			ev = ev.Str("comment", res.Comment)
		}
		if !res.Success {
			ev = ev.Str("error", res.Message)
		}
		ev.Msg("Profile result")
	}
}
