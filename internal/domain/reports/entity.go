package reports

import (
	"time"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
)

// ReportID identifier type
type ReportID string

// Status enum
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is a finished (or in-flight) analysis kept for retrieval.
// Only the terminal artefact is stored; runs are never resumed from it.
type Record struct {
	ID            ReportID           `json:"id"`
	Company       string             `json:"company"`
	Status        Status             `json:"status"`
	FinalReport   string             `json:"final_report,omitempty"`
	QualityPassed bool               `json:"quality_passed"`
	Iterations    int                `json:"iterations"`
	Messages      []analysis.Message `json:"messages,omitempty"`
	ReportURL     string             `json:"report_url,omitempty"`
	Error         string             `json:"error,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
}
