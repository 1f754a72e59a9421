package collector

import (
	"time"

	"codeberg.org/mutker/fleetinv/internal/backend"
	"codeberg.org/mutker/fleetinv/internal/inventory"
)

// CategoryStats counts the outcome of one category on one target. Succeeded
// counts completed detail fetches; Records counts normalized rows, which a
// fanned-out category may multiply and an empty collection may reduce to
// zero.
type CategoryStats struct {
	Succeeded int
	Failures  int
	Records   int
}

// TargetReport describes everything that happened to one target: how it was
// classified, what was enumerated, and every error along the way. A target
// is never silently dropped; an excluded target shows up here with the
// error that excluded it.
type TargetReport struct {
	Target            inventory.Target
	Kind              backend.Kind
	ProbeTrials       []backend.ProbeTrial
	EntityCount       int
	DuplicatesDropped int
	Truncated         bool
	SkippedCategories []string
	Categories        map[string]CategoryStats
	Errors            []error
}

// Report is the outcome of one collection run. Records holds the normalized
// rows of every target, grouped by category name.
type Report struct {
	RunID      string
	BatchEpoch int64
	StartedAt  time.Time
	FinishedAt time.Time
	Targets    []TargetReport
	Records    map[string][]inventory.DetailRecord
	SinkErrors []error
}

// HasErrors reports whether any target or sink error occurred during the
// run.
func (r *Report) HasErrors() bool {
	if len(r.SinkErrors) > 0 {
		return true
	}

	for i := range r.Targets {
		if len(r.Targets[i].Errors) > 0 {
			return true
		}
	}

	return false
}

// TotalRecords counts the normalized rows across all categories.
func (r *Report) TotalRecords() int {
	total := 0
	for _, records := range r.Records {
		total += len(records)
	}

	return total
}

// TotalEntities counts the deduplicated entities across all targets.
func (r *Report) TotalEntities() int {
	total := 0
	for i := range r.Targets {
		total += r.Targets[i].EntityCount
	}

	return total
}
