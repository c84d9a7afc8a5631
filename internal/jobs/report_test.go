package jobs

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fpang/profile-agent/internal/interaction"
)

func TestBuildReport(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	results := []interaction.Result{
		{ProfileURL: "a", Success: true, Liked: true, Commented: true},
		{ProfileURL: "b", Success: true, Liked: true},
		{ProfileURL: "c", Success: false, Message: "profile is private"},
	}

	r := BuildReport("run-1", results, nil, now)

	if !r.Success || r.Message != "Processing completed successfully" {
		t.Errorf("unexpected outcome %v %q", r.Success, r.Message)
	}
	if r.TotalProfiles != 3 || r.SuccessfulInteractions != 2 || r.FailedInteractions != 1 {
		t.Errorf("unexpected counts %+v", r)
	}
	if r.TotalLikes != 2 || r.TotalComments != 1 {
		t.Errorf("unexpected likes/comments %d/%d", r.TotalLikes, r.TotalComments)
	}
	if r.Timestamp != "2025-06-01T12:00:00.000Z" {
		t.Errorf("unexpected timestamp %s", r.Timestamp)
	}
}

func TestBuildReportFailure(t *testing.T) {
	r := BuildReport("run-2", nil, errors.New("boom"), time.Now())

	if r.Success {
		t.Error("expected failure")
	}
	if r.Message != "Processing failed: boom" {
		t.Errorf("unexpected message %q", r.Message)
	}
	if r.Results == nil {
		t.Error("expected empty, non-nil results")
	}
}

func TestRunIDs(t *testing.T) {
	id := NewRunID()
	if !strings.HasPrefix(id, RunIDPrefix) {
		t.Errorf("expected %s prefix, got %s", RunIDPrefix, id)
	}
	if NewRunID() == id {
		t.Error("expected unique IDs")
	}
	bare := strings.TrimPrefix(id, RunIDPrefix)
	if NormalizeRunID(bare) != id || NormalizeRunID(id) != id {
		t.Errorf("expected both forms to normalize to %s", id)
	}
}
