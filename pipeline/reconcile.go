package pipeline

import (
	"fmt"
	"log/slog"
)

// Reconcile pairs each schedule with its metadata records and checks that
// both sides name the same group codes. Each page succeeds or fails on its
// own; only a length mismatch between the inputs is fatal.
func Reconcile(schedules []ScheduleTable, dataSets [][]DataRecord) ([]Pair, []*MismatchError, error) {
	if len(schedules) != len(dataSets) {
		return nil, nil, fmt.Errorf("%w: %d schedules, %d metadata sets",
			ErrStructural, len(schedules), len(dataSets))
	}

	var (
		pairs      []Pair
		mismatches []*MismatchError
	)
	for i, sched := range schedules {
		pair := Pair{Schedule: sched, Records: dataSets[i]}

		inSchedule := make(map[string]bool)
		for _, code := range sched.GroupCodes() {
			inSchedule[code] = true
		}
		inData := make(map[string]bool)
		for _, rec := range dataSets[i] {
			if rec.GroupCode != "" {
				inData[rec.GroupCode] = true
			}
		}

		missingInData := difference(inSchedule, inData)
		missingInSchedule := difference(inData, inSchedule)
		if len(missingInData) == 0 && len(missingInSchedule) == 0 {
			pairs = append(pairs, pair)
			continue
		}

		m := &MismatchError{
			Page:              sched.Page,
			MissingInData:     missingInData,
			MissingInSchedule: missingInSchedule,
			Pair:              pair,
		}
		slog.Warn("reconcile: group mismatch", "page", sched.Page,
			"missing_in_data", missingInData, "missing_in_schedule", missingInSchedule)
		mismatches = append(mismatches, m)
	}
	return pairs, mismatches, nil
}

// difference returns the sorted keys of a that are not in b.
func difference(a, b map[string]bool) []string {
	out := make(map[string]bool)
	for k := range a {
		if !b[k] {
			out[k] = true
		}
	}
	if len(out) == 0 {
		return nil
	}
	return sortedKeys(out)
}
