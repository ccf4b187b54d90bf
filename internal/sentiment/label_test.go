package sentiment

import "testing"

func TestFromScore_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Label
	}{
		{0.05, Neutral},
		{0.0501, Positive},
		{-0.05, Neutral},
		{-0.0501, Negative},
		{0, Neutral},
		{1, Positive},
		{-1, Negative},
	}

	for _, tt := range tests {
		if got := FromScore(tt.score); got != tt.want {
			t.Errorf("FromScore(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Label
		ok   bool
	}{
		{"Positivo", Positive, true},
		{" negativo ", Negative, true},
		{"Neutral", Neutral, true},
		{"POSITIVE", Positive, true},
		{"", "", false},
		{"mixed", "", false},
	}

	for _, tt := range tests {
		got, ok := Normalize(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Normalize(%q) = (%s, %v), want (%s, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
