package materialize

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/ingestion"
	"market-sentiment-lab/internal/sentiment"
	"market-sentiment-lab/internal/storage"
)

// NoteBatch is the output of NoteMaterializer.Finish.
type NoteBatch struct {
	// Notes are ready to write, in staging order.
	Notes []*domain.Note
	// Unresolved counts records dropped because their user could not be created.
	Unresolved      int
	EntitiesCreated int
	// ScorerErrors counts posts whose model scoring failed and kept the lexicon label.
	ScorerErrors int
}

type noteDraft struct {
	rec        ingestion.PostRecord
	assessment sentiment.Assessment
}

// NoteMaterializer builds notes from post records, creating users for
// unseen handles and assigning sentiment.
type NoteMaterializer struct {
	users        *Resolver[*domain.User]
	scorer       sentiment.Scorer
	logger       *zap.Logger
	drafts       []noteDraft
	scorerErrors int
}

// NewNoteMaterializer creates a materializer. scorer is optional.
func NewNoteMaterializer(users *Resolver[*domain.User], scorer sentiment.Scorer, logger *zap.Logger) *NoteMaterializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoteMaterializer{users: users, scorer: scorer, logger: logger}
}

// NewUserResolver returns a Resolver creating placeholder users.
func NewUserResolver(store storage.UserStore, flushEvery int, logger *zap.Logger) *Resolver[*domain.User] {
	return NewResolver(ResolverOptions[*domain.User]{
		Name:       "users",
		Store:      store,
		New:        domain.NewPlaceholderUser,
		FlushEvery: flushEvery,
		Logger:     logger,
	})
}

// Stage assesses sentiment for every record and ensures its author exists.
func (m *NoteMaterializer) Stage(ctx context.Context, records []ingestion.PostRecord) error {
	for _, rec := range records {
		if err := m.users.Ensure(ctx, rec.Handle); err != nil {
			return fmt.Errorf("stage user %q: %w", rec.Handle, err)
		}

		a, err := sentiment.Assess(ctx, sentiment.Scores{
			Vader:         rec.VaderScore,
			VaderLabel:    rec.VaderLabel,
			TextBlob:      rec.TextBlobScore,
			TextBlobLabel: rec.TextBlobLabel,
		}, rec.Text, m.scorer)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			m.scorerErrors++
			m.logger.Warn("Sentiment scoring failed, keeping lexicon label",
				zap.String("uri", rec.URI), zap.Error(err))
		}

		m.drafts = append(m.drafts, noteDraft{rec: rec, assessment: a})
	}
	return nil
}

// Finish flushes pending users and attaches user IDs to the staged drafts.
func (m *NoteMaterializer) Finish(ctx context.Context) (*NoteBatch, error) {
	if err := m.users.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush users: %w", err)
	}

	batch := &NoteBatch{
		EntitiesCreated: m.users.Stats().Created,
		ScorerErrors:    m.scorerErrors,
	}
	for _, d := range m.drafts {
		id, ok := m.users.ID(d.rec.Handle)
		if !ok {
			batch.Unresolved++
			continue
		}
		batch.Notes = append(batch.Notes, &domain.Note{
			UserID:         id,
			URL:            d.rec.URI,
			PublishedAt:    d.rec.CreatedAt,
			Content:        d.rec.Text,
			Engagement:     d.rec.TotalEngagement(),
			SentimentScore: d.assessment.Score,
			SentimentLabel: string(d.assessment.Label),
		})
	}

	if batch.Unresolved > 0 {
		m.logger.Warn("Notes dropped for unresolved users", zap.Int("count", batch.Unresolved))
	}
	m.drafts = nil
	return batch, nil
}
