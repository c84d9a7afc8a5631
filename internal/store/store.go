// Package store persists batch reports so a run can be looked up after the
// triggering request has returned.
//
// The DynamoDB layout is a single table keyed by PK=RUN#{runId} and
// SK=REPORT. A TTL attribute (expiresAt) removes reports after RunTTL.
package store

import (
	"context"
	"time"

	"github.com/fpang/profile-agent/internal/jobs"
)

// RunTTL is how long reports are kept.
const RunTTL = 7 * 24 * time.Hour

// RunStore stores batch reports. Get returns nil, nil when the run does not
// exist. Put replaces any existing report for the same run.
type RunStore interface {
	Put(ctx context.Context, r jobs.Report) error
	Get(ctx context.Context, runID string) (*jobs.Report, error)
}
