// Package orchestrator runs the periodic integration of staged quotes and
// posts into the relational schema.
// Each run executes two isolated branches: quotes, then notes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"market-sentiment-lab/internal/dedup"
	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/ingestion"
	"market-sentiment-lab/internal/materialize"
	"market-sentiment-lab/internal/observability"
	"market-sentiment-lab/internal/sentiment"
	"market-sentiment-lab/internal/storage"
	"market-sentiment-lab/internal/watermark"
)

// ErrMissingDependency is returned by New when a required store or source is nil.
var ErrMissingDependency = errors.New("missing dependency")

// Options for creating an Integrator.
type Options struct {
	// Required stores
	Companies  storage.CompanyStore
	Users      storage.UserStore
	Quotes     storage.QuoteStore
	Notes      storage.NoteStore
	Watermarks storage.WatermarkStore

	// Required sources
	QuoteSource ingestion.QuoteSource
	PostSource  ingestion.PostSource

	// Optional collaborators
	Series  storage.QuoteSeriesStore // analytics mirror of persisted quotes
	Scorer  sentiment.Scorer         // scores posts without a lexicon score
	Metrics *observability.Metrics

	// Tuning
	BatchSize  int // derived records per write chunk, default dedup.DefaultBatchSize
	FlushEvery int // staged entities per flush, default materialize.DefaultFlushEvery
	Retry      ingestion.RetryPolicy

	Logger *zap.Logger
}

// Integrator merges new source records into the relational schema without
// duplicating anything already integrated. Not safe for concurrent use;
// run at most one Integrator per database.
type Integrator struct {
	opts       Options
	watermarks *watermark.Resolver
	fetcher    *ingestion.Fetcher
	logger     *zap.Logger
}

// New creates an Integrator.
func New(opts Options) (*Integrator, error) {
	required := []struct {
		name string
		dep  any
	}{
		{"Companies", opts.Companies},
		{"Users", opts.Users},
		{"Quotes", opts.Quotes},
		{"Notes", opts.Notes},
		{"Watermarks", opts.Watermarks},
		{"QuoteSource", opts.QuoteSource},
		{"PostSource", opts.PostSource},
	}
	for _, r := range required {
		if isNil(r.dep) {
			return nil, fmt.Errorf("%w: %s", ErrMissingDependency, r.name)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Logger = logger

	return &Integrator{
		opts:       opts,
		watermarks: watermark.NewResolver(opts.Watermarks),
		fetcher:    ingestion.NewFetcher(opts.Retry, logger),
		logger:     logger.Named("integrator"),
	}, nil
}

// Run executes one integration run. Both branches always run and reach
// REPORT; the returned error joins the branch errors and is nil when both
// succeeded. The report is returned in every case.
func (i *Integrator) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := i.logger.With(zap.String("run_id", report.RunID))
	logger.Info("Integration run started")

	report.Quotes = i.runBranch(ctx, logger, BranchQuotes, i.integrateQuotes)
	report.Notes = i.runBranch(ctx, logger, BranchNotes, i.integrateNotes)
	report.FinishedAt = time.Now().UTC()

	err := report.Err()
	logger.Info("Integration run finished",
		zap.Int("persisted", report.Persisted()),
		zap.Bool("quotes_ok", report.Quotes.OK()),
		zap.Bool("notes_ok", report.Notes.OK()),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	return report, err
}

// branchRun tracks the state machine of one branch.
type branchRun struct {
	report     *BranchReport
	logger     *zap.Logger
	metrics    *observability.Metrics
	started    time.Time
	stateStart time.Time
}

func (b *branchRun) enter(s State) {
	now := time.Now()
	if b.report.State != "" {
		b.metrics.RecordState(string(b.report.Branch), string(b.report.State), now.Sub(b.stateStart))
	}
	b.report.State = s
	b.stateStart = now
	b.logger.Debug("Entering state", zap.String("state", string(s)))
}

func (i *Integrator) runBranch(ctx context.Context, logger *zap.Logger, branch Branch, fn func(context.Context, *branchRun) error) *BranchReport {
	br := &branchRun{
		report:  &BranchReport{Branch: branch},
		logger:  logger.With(zap.String("branch", string(branch))),
		metrics: i.opts.Metrics,
		started: time.Now(),
	}

	if err := fn(ctx, br); err != nil {
		br.report.fail(br.report.State, err)
	}

	rep := br.report
	rep.Duration = time.Since(br.started)
	br.enter(StateReport)

	m := i.opts.Metrics
	m.RecordFetched(string(branch), rep.Fetched)
	m.RecordOutcome(string(branch), dedup.Persisted.String(), rep.Persisted)
	m.RecordOutcome(string(branch), dedup.SkippedDuplicate.String(), rep.SkippedDuplicate)
	m.RecordOutcome(string(branch), dedup.SkippedMalformed.String(), rep.SkippedMalformed+rep.Malformed)
	m.RecordOutcome(string(branch), dedup.Failed.String(), rep.Failed)
	m.RecordBranch(string(branch), rep.OK(), rep.Duration)

	if rep.OK() {
		br.logger.Info("Branch finished", rep.fields()...)
	} else {
		br.logger.Error("Branch failed", rep.fields()...)
	}
	return rep
}

func (i *Integrator) integrateQuotes(ctx context.Context, br *branchRun) error {
	rep := br.report

	br.enter(StateResolveWatermark)
	wm, err := i.watermarks.Resolve(ctx, storage.QuotesByDate)
	if err != nil {
		return err
	}
	rep.Watermark = wm

	br.enter(StateFetchNew)
	raw, err := i.fetcher.FetchQuotes(ctx, i.opts.QuoteSource, wm.Since())
	if err != nil {
		return err
	}
	rep.Fetched = len(raw)

	records := make([]ingestion.QuoteRecord, 0, len(raw))
	for _, r := range raw {
		rec, err := ingestion.ParseQuote(r)
		if err != nil {
			rep.Malformed++
			br.logger.Debug("Skipping malformed quote", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	fresh := watermark.Filter(wm, records, func(r ingestion.QuoteRecord) time.Time { return r.Date })
	rep.Stale = len(records) - len(fresh)
	ingestion.SortQuoteRecords(fresh)
	if err := ingestion.ValidateQuoteOrdering(fresh); err != nil {
		return err
	}

	br.enter(StateMaterializeEntities)
	companies := materialize.NewCompanyResolver(i.opts.Companies, i.opts.FlushEvery, br.logger)
	if err := companies.Load(ctx); err != nil {
		return err
	}
	defer func() {
		stats := companies.Stats()
		rep.EntitiesCreated = stats.Created
		rep.EntityConflicts = stats.Conflicts
		rep.EntityFailures = stats.Failed
		br.metrics.RecordEntities("companies", stats.Created, stats.Conflicts)
	}()

	m := materialize.NewQuoteMaterializer(companies, i.opts.Quotes, br.logger)
	if err := m.Stage(ctx, fresh); err != nil {
		return err
	}

	br.enter(StateFlushEntities)
	batch, err := m.Finish(ctx)
	if err != nil {
		return err
	}
	rep.Materialized = len(batch.Quotes)
	rep.Unresolved = batch.Unresolved

	br.enter(StateDedupWrite)
	w := dedup.NewWriter(dedup.Options[*domain.Quote, domain.QuoteKey]{
		Name:      "quotes",
		Sink:      i.opts.Quotes,
		Key:       (*domain.Quote).Key,
		Validate:  (*domain.Quote).Validate,
		LoadKeys:  existingQuoteKeys(i.opts.Quotes),
		BatchSize: i.opts.BatchSize,
		Logger:    br.logger,
	})
	res, err := w.Write(ctx, batch.Quotes)
	tally(rep, res)
	rep.SkippedDuplicate += batch.Duplicates
	if err != nil {
		return err
	}

	br.enter(StateCommit)
	i.mirror(ctx, br, batch, res)
	return nil
}

func (i *Integrator) integrateNotes(ctx context.Context, br *branchRun) error {
	rep := br.report

	br.enter(StateResolveWatermark)
	wm, err := i.watermarks.Resolve(ctx, storage.NotesByPublishedAt)
	if err != nil {
		return err
	}
	rep.Watermark = wm

	br.enter(StateFetchNew)
	raw, err := i.fetcher.FetchPosts(ctx, i.opts.PostSource, wm.Since())
	if err != nil {
		return err
	}
	rep.Fetched = len(raw)

	records := make([]ingestion.PostRecord, 0, len(raw))
	for _, r := range raw {
		rec, err := ingestion.ParsePost(r)
		if err != nil {
			rep.Malformed++
			br.logger.Debug("Skipping malformed post", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	fresh := watermark.Filter(wm, records, func(r ingestion.PostRecord) time.Time { return r.CreatedAt })
	rep.Stale = len(records) - len(fresh)
	ingestion.SortPostRecords(fresh)
	if err := ingestion.ValidatePostOrdering(fresh); err != nil {
		return err
	}

	br.enter(StateMaterializeEntities)
	users := materialize.NewUserResolver(i.opts.Users, i.opts.FlushEvery, br.logger)
	if err := users.Load(ctx); err != nil {
		return err
	}
	defer func() {
		stats := users.Stats()
		rep.EntitiesCreated = stats.Created
		rep.EntityConflicts = stats.Conflicts
		rep.EntityFailures = stats.Failed
		br.metrics.RecordEntities("users", stats.Created, stats.Conflicts)
	}()

	m := materialize.NewNoteMaterializer(users, i.opts.Scorer, br.logger)
	if err := m.Stage(ctx, fresh); err != nil {
		return err
	}

	br.enter(StateFlushEntities)
	batch, err := m.Finish(ctx)
	if err != nil {
		return err
	}
	rep.Materialized = len(batch.Notes)
	rep.Unresolved = batch.Unresolved
	rep.SentimentErrors = batch.ScorerErrors

	br.enter(StateDedupWrite)
	w := dedup.NewWriter(dedup.Options[*domain.Note, string]{
		Name:     "notes",
		Sink:     i.opts.Notes,
		Key:      func(n *domain.Note) string { return n.URL },
		Validate: (*domain.Note).Validate,
		LoadKeys: func(ctx context.Context, _ []*domain.Note) ([]string, error) {
			return i.opts.Notes.LoadURLs(ctx)
		},
		BatchSize: i.opts.BatchSize,
		Logger:    br.logger,
	})
	res, err := w.Write(ctx, batch.Notes)
	tally(rep, res)
	if err != nil {
		return err
	}

	br.enter(StateCommit)
	return nil
}

// existingQuoteKeys loads the persisted keys within the companies and date
// span of a batch.
func existingQuoteKeys(store storage.QuoteStore) func(context.Context, []*domain.Quote) ([]domain.QuoteKey, error) {
	return func(ctx context.Context, quotes []*domain.Quote) ([]domain.QuoteKey, error) {
		if len(quotes) == 0 {
			return nil, nil
		}
		seen := make(map[int64]struct{})
		var ids []int64
		from, to := quotes[0].Date, quotes[0].Date
		for _, q := range quotes {
			if _, ok := seen[q.CompanyID]; !ok {
				seen[q.CompanyID] = struct{}{}
				ids = append(ids, q.CompanyID)
			}
			if q.Date.Before(from) {
				from = q.Date
			}
			if q.Date.After(to) {
				to = q.Date
			}
		}
		return store.ExistingKeys(ctx, ids, from, to)
	}
}

func tally[K comparable](rep *BranchReport, res *dedup.Result[K]) {
	if res == nil {
		return
	}
	rep.Persisted = res.Persisted
	rep.SkippedDuplicate = res.SkippedDuplicate
	rep.SkippedMalformed = res.SkippedMalformed
	rep.Failed = res.Failed
}

// mirror copies the quotes persisted by this run into the analytics series.
// Failures are logged and never fail the branch.
func (i *Integrator) mirror(ctx context.Context, br *branchRun, batch *materialize.QuoteBatch, res *dedup.Result[domain.QuoteKey]) {
	if isNil(i.opts.Series) || res.Persisted == 0 {
		return
	}

	points := make([]*domain.QuotePoint, 0, res.Persisted)
	for _, rr := range res.Records {
		if rr.Outcome != dedup.Persisted {
			continue
		}
		q := batch.Quotes[rr.Index]
		p := &domain.QuotePoint{
			Ticker: batch.Tickers[q.CompanyID],
			Date:   q.Date,
			Close:  q.Close,
		}
		if q.Volume != nil {
			p.Volume = *q.Volume
		}
		if q.PctChange != nil {
			p.PctChange = *q.PctChange
			p.HasChange = true
		}
		points = append(points, p)
	}

	err := i.opts.Series.InsertBulk(ctx, points)
	br.metrics.RecordMirror(len(points), err)
	if err != nil {
		br.logger.Warn("Analytics mirror failed", zap.Int("points", len(points)), zap.Error(err))
		return
	}
	br.report.Mirrored = len(points)
}

// isNil reports whether v is nil or an interface holding a nil pointer.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
