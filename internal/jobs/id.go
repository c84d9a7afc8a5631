package jobs

import (
	"strings"

	"github.com/google/uuid"
)

// RunIDPrefix starts every run ID.
const RunIDPrefix = "run-"

// NewRunID returns a new random run ID.
func NewRunID() string {
	return RunIDPrefix + uuid.NewString()
}

// NormalizeRunID adds RunIDPrefix to a bare UUID so either form can be used
// to look a run up.
func NormalizeRunID(id string) string {
	if strings.HasPrefix(id, RunIDPrefix) {
		return id
	}
	return RunIDPrefix + id
}
