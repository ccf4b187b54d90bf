package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"market-sentiment-lab/internal/watermark"
)

// State is a step of a branch run.
type State string

// Branch states, in execution order.
const (
	StateResolveWatermark    State = "RESOLVE_WATERMARK"
	StateFetchNew            State = "FETCH_NEW"
	StateMaterializeEntities State = "MATERIALIZE_ENTITIES"
	StateFlushEntities       State = "FLUSH_ENTITIES"
	StateDedupWrite          State = "DEDUP_WRITE"
	StateCommit              State = "COMMIT"
	StateReport              State = "REPORT"
)

// Branch names an integration branch.
type Branch string

const (
	BranchQuotes Branch = "quotes"
	BranchNotes  Branch = "notes"
)

// BranchReport summarises one branch of a run.
type BranchReport struct {
	Branch Branch
	// State is the last state the branch entered; REPORT once finished.
	State State
	// FailedAt is the state that failed, empty on success.
	FailedAt  State
	Watermark watermark.Watermark

	Fetched      int // raw rows returned by the source
	Malformed    int // rows rejected while coercing to records
	Stale        int // records at or before the watermark
	Materialized int // derived records built
	Unresolved   int // records dropped for a missing parent entity

	EntitiesCreated  int
	EntityConflicts  int
	EntityFailures   int
	SentimentErrors  int
	Persisted        int
	SkippedDuplicate int
	SkippedMalformed int
	Failed           int
	Mirrored         int

	Duration time.Duration
	Err      error
}

// OK reports whether the branch finished without error.
func (b *BranchReport) OK() bool {
	return b.Err == nil
}

func (b *BranchReport) fail(state State, err error) {
	b.FailedAt = state
	b.Err = fmt.Errorf("%s branch: %s: %w", b.Branch, state, err)
}

func (b *BranchReport) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("branch", string(b.Branch)),
		zap.String("watermark", b.Watermark.String()),
		zap.Int("fetched", b.Fetched),
		zap.Int("malformed", b.Malformed),
		zap.Int("stale", b.Stale),
		zap.Int("materialized", b.Materialized),
		zap.Int("unresolved", b.Unresolved),
		zap.Int("entities_created", b.EntitiesCreated),
		zap.Int("entity_conflicts", b.EntityConflicts),
		zap.Int("persisted", b.Persisted),
		zap.Int("skipped_duplicate", b.SkippedDuplicate),
		zap.Int("skipped_malformed", b.SkippedMalformed),
		zap.Int("failed", b.Failed),
		zap.Duration("duration", b.Duration),
	}
	if b.Branch == BranchQuotes {
		fields = append(fields, zap.Int("mirrored", b.Mirrored))
	}
	if b.Err != nil {
		fields = append(fields, zap.String("failed_at", string(b.FailedAt)), zap.Error(b.Err))
	}
	return fields
}

// RunReport is the outcome of Integrator.Run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Quotes     *BranchReport
	Notes      *BranchReport
}

// Branches returns the branch reports in execution order.
func (r *RunReport) Branches() []*BranchReport {
	return []*BranchReport{r.Quotes, r.Notes}
}

// Err joins the errors of failed branches.
func (r *RunReport) Err() error {
	var errs []error
	for _, b := range r.Branches() {
		if b != nil && b.Err != nil {
			errs = append(errs, b.Err)
		}
	}
	return errors.Join(errs...)
}

// Persisted returns the number of records persisted across branches.
func (r *RunReport) Persisted() int {
	n := 0
	for _, b := range r.Branches() {
		if b != nil {
			n += b.Persisted
		}
	}
	return n
}
