package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStructural marks a broken contract between stages, such as schedules
// and metadata sets of different lengths. It aborts the run.
var ErrStructural = errors.New("pipeline: structural precondition violated")

// IssueKind classifies a non-fatal, page-scoped problem.
type IssueKind string

const (
	IssueClassificationMiss     IssueKind = "classification_miss"
	IssueExtractionFailure      IssueKind = "extraction_failure"
	IssueFieldDegrade           IssueKind = "field_degrade"
	IssueOrphanData             IssueKind = "orphan_data"
	IssueReconciliationMismatch IssueKind = "reconciliation_mismatch"
)

// Issue is a problem recovered at page granularity.
type Issue struct {
	Page   int       `json:"page"`
	Kind   IssueKind `json:"kind"`
	Detail string    `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("page %d: %s: %s", i.Page, i.Kind, i.Detail)
}

// MismatchError reports the group codes of one schedule page that have no
// counterpart on the other side.
type MismatchError struct {
	Page              int      `json:"page"`
	MissingInData     []string `json:"missing_in_data,omitempty"`
	MissingInSchedule []string `json:"missing_in_schedule,omitempty"`
	Pair              Pair     `json:"-"`
}

func (e *MismatchError) Error() string {
	var parts []string
	if len(e.MissingInData) > 0 {
		parts = append(parts, "scheduled without metadata: "+strings.Join(e.MissingInData, ", "))
	}
	if len(e.MissingInSchedule) > 0 {
		parts = append(parts, "metadata without schedule: "+strings.Join(e.MissingInSchedule, ", "))
	}
	return fmt.Sprintf("pipeline: page %d: group mismatch (%s)", e.Page, strings.Join(parts, "; "))
}

// Codes returns every unmatched code, schedule side first.
func (e *MismatchError) Codes() []string {
	out := make([]string, 0, len(e.MissingInData)+len(e.MissingInSchedule))
	out = append(out, e.MissingInData...)
	return append(out, e.MissingInSchedule...)
}
