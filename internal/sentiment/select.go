package sentiment

import "context"

// Lexicon names the scorer an Assessment came from.
type Lexicon string

const (
	Vader    Lexicon = "vader"
	TextBlob Lexicon = "textblob"
	Model    Lexicon = "model"
	None     Lexicon = "none"
)

// Scores carries the lexicon outputs attached to a post at extraction time.
type Scores struct {
	Vader         *float64
	VaderLabel    string
	TextBlob      *float64
	TextBlobLabel string
}

// Assessment is the sentiment stored with a note.
type Assessment struct {
	Score  *float64
	Label  Label
	Source Lexicon
}

// Select prefers the VADER score, then TextBlob. Labels are chosen
// independently of scores: the VADER label when recognisable, then the
// TextBlob label, otherwise derived from the selected score. Without any
// score or label the result is Neutral.
func Select(s Scores) Assessment {
	a := Assessment{Label: Neutral, Source: None}
	switch {
	case s.Vader != nil:
		score := clamp(*s.Vader)
		a.Score, a.Source = &score, Vader
	case s.TextBlob != nil:
		score := clamp(*s.TextBlob)
		a.Score, a.Source = &score, TextBlob
	}
	if a.Score != nil {
		a.Label = FromScore(*a.Score)
	}

	for _, l := range []string{s.VaderLabel, s.TextBlobLabel} {
		if label, ok := Normalize(l); ok {
			a.Label = label
			break
		}
	}
	return a
}

func clamp(f float64) float64 {
	switch {
	case f > 1:
		return 1
	case f < -1:
		return -1
	}
	return f
}

// Scorer produces a score in [-1, 1] for a text.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// Assess selects from the lexicon scores, falling back to scorer for posts
// that carry no score at all. A nil scorer or a scorer error leaves the
// lexicon-only assessment in place.
func Assess(ctx context.Context, s Scores, text string, scorer Scorer) (Assessment, error) {
	a := Select(s)
	if a.Score != nil || scorer == nil || text == "" {
		return a, nil
	}

	score, err := scorer.Score(ctx, text)
	if err != nil {
		return a, err
	}
	score = clamp(score)
	return Assessment{Score: &score, Label: FromScore(score), Source: Model}, nil
}
