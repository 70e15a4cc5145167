// Package aitask implements asynchronous clinical AI background tasks:
// submission, durable status tracking, and execution against the
// generation capability.
package aitask

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task statuses. A task starts PENDING, moves to IN_PROGRESS when a worker
// picks it up, and ends in exactly one of COMPLETED or FAILED. Terminal
// statuses are never overwritten.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Supported background task types.
const (
	TypeClinicalAssessment = "clinical_assessment"
	TypeDrugInteraction    = "drug_interaction"
)

var validTypes = map[string]bool{
	TypeClinicalAssessment: true,
	TypeDrugInteraction:    true,
}

// ValidType reports whether taskType names a supported background task.
func ValidType(taskType string) bool { return validTypes[taskType] }

// IsTerminal reports whether status is COMPLETED or FAILED.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Task maps to the ai_task table.
type Task struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	Type      string           `db:"type" json:"type"`
	Status    string           `db:"status" json:"status"`
	Input     json.RawMessage  `db:"input" json:"input"`
	Output    *json.RawMessage `db:"output" json:"output,omitempty"`
	Error     *string          `db:"error" json:"error,omitempty"`
	CreatedBy string           `db:"created_by" json:"created_by"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}
