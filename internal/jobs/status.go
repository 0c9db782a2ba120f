package jobs

import "github.com/google/uuid"

// Status is the lifecycle state of a log artifact job.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"

	// StatusNotFound is returned for ids that were never issued. It is never stored.
	StatusNotFound Status = "NOT_FOUND"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is the stored state of one job.
// Error is set only when FAILED, ArtifactPath only when COMPLETED.
type Record struct {
	ID           uuid.UUID
	Status       Status
	Error        string
	ArtifactPath string
}

// StatusView is what pollers see: the artifact path is deliberately absent.
type StatusView struct {
	Status       Status `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Artifact locates the output of a completed job.
type Artifact struct {
	ID   uuid.UUID
	Path string
}
