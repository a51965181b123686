package execution

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/concord/internal/task"
	"github.com/fyrsmithlabs/concord/internal/validation"
)

// AuditRecord describes one validated dispatch.
type AuditRecord struct {
	ID                string             `json:"id" yaml:"id"`
	Timestamp         time.Time          `json:"timestamp" yaml:"timestamp"`
	TaskID            string             `json:"task_id" yaml:"task_id"`
	ExecutorID        string             `json:"executor_id" yaml:"executor_id"`
	Input             string             `json:"input" yaml:"input"`
	PreVerdict        validation.Verdict `json:"pre_verdict" yaml:"pre_verdict"`
	Verdict           validation.Verdict `json:"verdict" yaml:"verdict"`
	CorrectionApplied bool               `json:"correction_applied" yaml:"correction_applied"`
	Correction        string             `json:"correction,omitempty" yaml:"correction,omitempty"`
	FinalOutput       string             `json:"final_output" yaml:"final_output"`
	Status            task.State         `json:"status" yaml:"status"`
}

// AuditLog is an append-only record of dispatches. With a positive max the
// oldest records are evicted once the log is full.
type AuditLog struct {
	mu      sync.Mutex
	records []AuditRecord
	max     int
}

// NewAuditLog creates a log holding at most limit records; 0 means unbounded.
func NewAuditLog(limit int) *AuditLog {
	if limit < 0 {
		limit = 0
	}
	return &AuditLog{max: limit}
}

// Append adds a record, filling in ID and Timestamp when unset.
func (l *AuditLog) Append(r AuditRecord) AuditRecord {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
	if l.max > 0 && len(l.records) > l.max {
		drop := len(l.records) - l.max
		l.records = append([]AuditRecord(nil), l.records[drop:]...)
	}
	return r
}

// Records returns the most recent limit records, oldest first. A limit of
// zero or less returns everything.
func (l *AuditLog) Records(limit int) []AuditRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := 0
	if limit > 0 && limit < len(l.records) {
		start = len(l.records) - limit
	}
	return append([]AuditRecord(nil), l.records[start:]...)
}

// Len returns the number of retained records.
func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Reset clears the log. Intended for test isolation.
func (l *AuditLog) Reset() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()
}
