package model

import (
	"fmt"
	"sync"
	"time"
)

// Outcome is the terminal state of one identity within a run.
type Outcome string

const (
	// OutcomeOK means both stores were written successfully.
	OutcomeOK Outcome = "ok"
	// OutcomeFailed means the relational write failed; the graph write was
	// not attempted because the relational store is the system of record.
	OutcomeFailed Outcome = "failed"
	// OutcomePartiallySynced means the relational write succeeded but the
	// graph write failed. The relational row is authoritative and the graph
	// view is stale until a repair pass re-runs the graph upsert.
	OutcomePartiallySynced Outcome = "partially-synced"
)

// RecordOutcome is the per-identity result of one ingestion run.
type RecordOutcome struct {
	Identity  Identity `json:"identity"`
	Outcome   Outcome  `json:"outcome"`
	Fallbacks []string `json:"fallbacks,omitempty"`
	Err       string   `json:"error,omitempty"`
}

// RunReport aggregates outcomes across all identities of one ingestion run.
// It is safe for concurrent use by the reconciliation workers.
type RunReport struct {
	mu           sync.Mutex
	records      []RecordOutcome
	sourceErrors map[string]string
	startedAt    time.Time
	finishedAt   time.Time
}

// NewRunReport creates an empty report with the start time set.
func NewRunReport() *RunReport {
	return &RunReport{
		sourceErrors: map[string]string{},
		startedAt:    time.Now(),
	}
}

// Add appends one record outcome.
func (r *RunReport) Add(outcome RecordOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, outcome)
}

// AddSourceError records a locality whose source fetch failed. The rest of
// the batch is unaffected.
func (r *RunReport) AddSourceError(locality string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sourceErrors[locality] = err.Error()
}

// Finish stamps the end time of the run.
func (r *RunReport) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishedAt = time.Now()
}

// Records returns a copy of all record outcomes.
func (r *RunReport) Records() []RecordOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordOutcome, len(r.records))
	copy(out, r.records)
	return out
}

// SourceErrors returns a copy of the locality fetch failures.
func (r *RunReport) SourceErrors() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.sourceErrors))
	for k, v := range r.sourceErrors {
		out[k] = v
	}
	return out
}

// Counts returns the number of ok, failed and partially-synced records.
func (r *RunReport) Counts() (ok int, failed int, partiallySynced int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		switch rec.Outcome {
		case OutcomeOK:
			ok++
		case OutcomeFailed:
			failed++
		case OutcomePartiallySynced:
			partiallySynced++
		}
	}
	return ok, failed, partiallySynced
}

// FallbackIdentities returns the identities whose enrichment used at least
// one fallback value.
func (r *RunReport) FallbackIdentities() []Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []Identity
	for _, rec := range r.records {
		if len(rec.Fallbacks) > 0 {
			ids = append(ids, rec.Identity)
		}
	}
	return ids
}

// FallbackCount returns the total number of fallback flags across records.
func (r *RunReport) FallbackCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, rec := range r.records {
		count += len(rec.Fallbacks)
	}
	return count
}

// PartiallySyncedIdentities returns the identities whose graph write failed
// after the relational write succeeded. This is the input to a repair pass.
func (r *RunReport) PartiallySyncedIdentities() []Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []Identity
	for _, rec := range r.records {
		if rec.Outcome == OutcomePartiallySynced {
			ids = append(ids, rec.Identity)
		}
	}
	return ids
}

// Duration returns how long the run took. Zero until Finish is called.
func (r *RunReport) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finishedAt.IsZero() {
		return 0
	}
	return r.finishedAt.Sub(r.startedAt)
}

// Summary returns a one-line operator summary of the run.
func (r *RunReport) Summary() string {
	ok, failed, partial := r.Counts()
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("%d ok, %d failed, %d partially-synced, %d source errors, %d records with fallbacks",
		ok, failed, partial, len(r.sourceErrors), countFallbackRecords(r.records))
}

func countFallbackRecords(records []RecordOutcome) int {
	count := 0
	for _, rec := range records {
		if len(rec.Fallbacks) > 0 {
			count++
		}
	}
	return count
}
