package materialize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPctChange_Fold(t *testing.T) {
	obs := []Observation{
		{Series: "GGAL", Date: day(2024, 1, 1), Close: 100},
		{Series: "GGAL", Date: day(2024, 1, 2), Close: 110},
		{Series: "GGAL", Date: day(2024, 1, 3), Close: 99},
	}

	got := PctChange(obs, nil)
	require.Len(t, got, 3)
	assert.Nil(t, got[0])
	require.NotNil(t, got[1])
	assert.InDelta(t, 10.0, *got[1], 1e-9)
	require.NotNil(t, got[2])
	assert.InDelta(t, -10.0, *got[2], 1e-9)
}

func TestPctChange_GroupsAndSortsBySeries(t *testing.T) {
	obs := []Observation{
		{Series: "YPF", Date: day(2024, 1, 2), Close: 30},
		{Series: "GGAL", Date: day(2024, 1, 2), Close: 120},
		{Series: "YPF", Date: day(2024, 1, 1), Close: 20},
		{Series: "GGAL", Date: day(2024, 1, 1), Close: 100},
	}

	got := PctChange(obs, nil)
	assert.InDelta(t, 50.0, *got[0], 1e-9)
	assert.InDelta(t, 20.0, *got[1], 1e-9)
	assert.Nil(t, got[2])
	assert.Nil(t, got[3])
}

func TestPctChange_Seeded(t *testing.T) {
	obs := []Observation{{Series: "GGAL", Date: day(2024, 1, 4), Close: 99}}

	got := PctChange(obs, map[string]float64{"GGAL": 110})
	require.NotNil(t, got[0])
	assert.InDelta(t, -10.0, *got[0], 1e-9)
}

func TestPctChange_ZeroPreviousClose(t *testing.T) {
	obs := []Observation{
		{Series: "X", Date: day(2024, 1, 1), Close: 0},
		{Series: "X", Date: day(2024, 1, 2), Close: 5},
		{Series: "X", Date: day(2024, 1, 3), Close: 10},
	}

	got := PctChange(obs, nil)
	assert.Nil(t, got[0])
	assert.Nil(t, got[1])
	assert.InDelta(t, 100.0, *got[2], 1e-9)
}
