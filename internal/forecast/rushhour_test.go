package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEstimator(store *mockStore, audit bool) *RushEstimator {
	return NewRushEstimator(store, nil, 5, 15, audit)
}

func addPickups(store *mockStore, at time.Time, count int) {
	for i := 0; i < count; i++ {
		store.pickupTimes = append(store.pickupTimes, at)
	}
}

func TestPredictRushHoursCoversServingWindow(t *testing.T) {
	store := newMockStore()
	e := newTestEstimator(store, false)

	result, err := e.PredictRushHours(context.Background(), mondayAt(0))
	require.NoError(t, err)

	// 08:00 through 20:00 inclusive, even with no history.
	require.Len(t, result, 13)
	for hour := RushWindowStart; hour <= RushWindowEnd; hour++ {
		info, ok := result[hour]
		require.True(t, ok, "missing hour %d", hour)
		assert.Equal(t, hour, info.Hour)
		assert.Equal(t, 0, info.Count)
		assert.Equal(t, "low", info.Level)
	}
}

func TestPredictRushHoursCountsMatchingWeekday(t *testing.T) {
	store := newMockStore()
	addPickups(store, mondayAt(12), 20)
	addPickups(store, mondayAt(9), 7)
	// Tuesday pickups must not count toward a Monday estimate.
	addPickups(store, mondayAt(12).AddDate(0, 0, 1), 30)

	e := newTestEstimator(store, false)
	result, err := e.PredictRushHours(context.Background(), mondayAt(0).AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Equal(t, 20, result[12].Count)
	assert.Equal(t, "high", result[12].Level)
	assert.Equal(t, 7, result[9].Count)
	assert.Equal(t, "medium", result[9].Level)
	assert.Equal(t, 0, result[15].Count)
	assert.Equal(t, "low", result[15].Level)
}

func TestClassifyRushLevelBoundaries(t *testing.T) {
	e := newTestEstimator(newMockStore(), false)

	assert.Equal(t, "low", e.ClassifyRushLevel(0))
	assert.Equal(t, "low", e.ClassifyRushLevel(4))
	assert.Equal(t, "medium", e.ClassifyRushLevel(5))
	assert.Equal(t, "medium", e.ClassifyRushLevel(14))
	assert.Equal(t, "high", e.ClassifyRushLevel(15))
	assert.Equal(t, "high", e.ClassifyRushLevel(100))
}

func TestQuietTimeSuggestionsFirstThreeLowHours(t *testing.T) {
	store := newMockStore()
	// Make 8, 9 and 12 busy; everything else stays low.
	addPickups(store, mondayAt(8), 6)
	addPickups(store, mondayAt(9), 20)
	addPickups(store, mondayAt(12), 16)

	e := newTestEstimator(store, false)
	quiet, err := e.QuietTimeSuggestions(context.Background(), mondayAt(0))
	require.NoError(t, err)

	require.Len(t, quiet, 3)
	assert.Equal(t, 10, quiet[0].Hour)
	assert.Equal(t, 11, quiet[1].Hour)
	assert.Equal(t, 13, quiet[2].Hour)
	assert.Equal(t, "10:00 - 11:00", quiet[0].Time)
	assert.Equal(t, "Light", quiet[0].Traffic)
	assert.True(t, quiet[0].Recommended)
}

func TestQuietTimeSuggestionsNoneWhenAllBusy(t *testing.T) {
	store := newMockStore()
	for hour := RushWindowStart; hour <= RushWindowEnd; hour++ {
		addPickups(store, mondayAt(hour), 10)
	}

	e := newTestEstimator(store, false)
	quiet, err := e.QuietTimeSuggestions(context.Background(), mondayAt(0))
	require.NoError(t, err)
	assert.Empty(t, quiet)
}

func TestPredictRushHoursAuditSnapshot(t *testing.T) {
	store := newMockStore()
	addPickups(store, mondayAt(12), 3)

	e := newTestEstimator(store, true)
	_, err := e.PredictRushHours(context.Background(), mondayAt(0))
	require.NoError(t, err)

	require.Len(t, store.snapshots, 1)
	assert.Len(t, store.snapshots[0], 13)
}
