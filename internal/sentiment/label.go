// Package sentiment turns lexicon scores into the polarity labels stored
// with each note.
package sentiment

import "strings"

// Label is a sentiment polarity.
type Label string

const (
	Positive Label = "Positive"
	Negative Label = "Negative"
	Neutral  Label = "Neutral"
)

// Polarity thresholds. Scores strictly beyond them are polar.
const (
	PositiveThreshold = 0.05
	NegativeThreshold = -0.05
)

// FromScore labels a score in [-1, 1].
func FromScore(score float64) Label {
	switch {
	case score > PositiveThreshold:
		return Positive
	case score < NegativeThreshold:
		return Negative
	}
	return Neutral
}

// Normalize maps the label spellings found in the feeds onto a Label.
// ok is false for empty or unrecognised input.
func Normalize(s string) (Label, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "positivo", "pos":
		return Positive, true
	case "negative", "negativo", "neg":
		return Negative, true
	case "neutral", "neutro", "neu":
		return Neutral, true
	}
	return "", false
}
