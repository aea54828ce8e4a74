package forecast

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-canteen/internal/config"
	"ms-canteen/internal/models"
)

func testModelConfig(t *testing.T) config.ModelConfig {
	t.Helper()
	return config.ModelConfig{
		ArtifactPath:       filepath.Join(t.TempDir(), "demand_model.json"),
		LookbackDays:       60,
		MinTrainingSamples: 50,
		TestSplit:          0.2,
		Seed:               42,
		FallbackWindow:     100,
		FallbackFloor:      5,
		FallbackDefault:    10,
	}
}

func newTestModel(t *testing.T, store *mockStore, cfg config.ModelConfig) *DemandModel {
	t.Helper()
	extractor := NewExtractor(store, time.Duration(cfg.LookbackDays)*24*time.Hour, cfg.MinTrainingSamples)
	return NewDemandModel(store, extractor, cfg, nil)
}

// seedLinearHistory fills the store with one reservation per bucket where
// demand is an exact linear function of hour and day-of-week, across six
// meals so every feature column varies.
func seedLinearHistory(store *mockStore) {
	store.addMeal(1, 5.99, models.CategoryBreakfast)
	store.addMeal(2, 6.99, models.CategoryLunch)
	store.addMeal(3, 8.99, models.CategoryDinner)
	store.addMeal(4, 3.50, models.CategorySnack)
	store.addMeal(5, 2.50, models.CategoryBeverage)
	store.addMeal(6, 3.00, models.CategoryBeverage)

	for mealID := int64(1); mealID <= 6; mealID++ {
		for day := 0; day < 7; day++ {
			for hour := 8; hour <= 12; hour++ {
				pickup := mondayAt(hour).AddDate(0, 0, day)
				store.addReservation(mealID, pickup, 3*hour+day)
			}
		}
	}
}

func TestPredictDemandUnknownMealIsZero(t *testing.T) {
	store := newMockStore()
	m := newTestModel(t, store, testModelConfig(t))

	assert.Equal(t, 0, m.PredictDemand(context.Background(), 99, 0, 12))
}

func TestPredictDemandUntrainedNoHistory(t *testing.T) {
	store := newMockStore()
	store.addMeal(1, 6.99, models.CategoryLunch)
	m := newTestModel(t, store, testModelConfig(t))

	assert.False(t, m.Trained())
	assert.Equal(t, 10, m.PredictDemand(context.Background(), 1, 0, 12))
}

func TestPredictDemandFallbackFloor(t *testing.T) {
	store := newMockStore()
	store.addMeal(1, 6.99, models.CategoryLunch)
	store.quantities[1] = []int{2, 3, 4}
	m := newTestModel(t, store, testModelConfig(t))

	// Average 3 is below the floor of 5.
	assert.Equal(t, 5, m.PredictDemand(context.Background(), 1, 0, 12))
}

func TestPredictDemandFallbackAverage(t *testing.T) {
	store := newMockStore()
	store.addMeal(1, 6.99, models.CategoryLunch)
	store.quantities[1] = []int{10, 20}
	m := newTestModel(t, store, testModelConfig(t))

	assert.Equal(t, 15, m.PredictDemand(context.Background(), 1, 0, 12))
}

func TestTrainInsufficientDataKeepsModel(t *testing.T) {
	store := newMockStore()
	store.addMeal(1, 6.99, models.CategoryLunch)
	store.addReservation(1, mondayAt(12), 2)
	m := newTestModel(t, store, testModelConfig(t))

	trained, err := m.Train(context.Background())
	require.NoError(t, err)
	assert.False(t, trained)
	assert.False(t, m.Trained())
}

func TestTrainRecoversLinearDemand(t *testing.T) {
	store := newMockStore()
	seedLinearHistory(store)
	m := newTestModel(t, store, testModelConfig(t))

	trained, err := m.Train(context.Background())
	require.NoError(t, err)
	require.True(t, trained)
	require.True(t, m.Trained())

	// demand = 3*hour + day for every bucket; the fit should be near exact.
	got := m.PredictDemand(context.Background(), 1, 2, 10)
	assert.InDelta(t, 32, got, 2)

	got = m.PredictDemand(context.Background(), 3, 0, 8)
	assert.InDelta(t, 24, got, 2)
}

func TestTrainPersistsArtifactForReload(t *testing.T) {
	store := newMockStore()
	seedLinearHistory(store)
	cfg := testModelConfig(t)

	m := newTestModel(t, store, cfg)
	trained, err := m.Train(context.Background())
	require.NoError(t, err)
	require.True(t, trained)

	// A fresh process picks the artifact up from disk.
	reloaded := newTestModel(t, store, cfg)
	assert.True(t, reloaded.Trained())
	assert.Equal(t,
		m.PredictDemand(context.Background(), 2, 3, 11),
		reloaded.PredictDemand(context.Background(), 2, 3, 11))
}

func TestPredictDemandClampsNegative(t *testing.T) {
	store := newMockStore()
	store.addMeal(1, 6.99, models.CategoryLunch)
	m := newTestModel(t, store, testModelConfig(t))

	m.model.Store(&modelArtifact{
		Intercept: -100,
		Weights:   make([]float64, FeatureCount),
		TrainedAt: time.Now(),
	})

	assert.Equal(t, 0, m.PredictDemand(context.Background(), 1, 0, 12))
}

func TestPredictDemandTruncatesToInt(t *testing.T) {
	store := newMockStore()
	store.addMeal(1, 6.99, models.CategoryLunch)
	m := newTestModel(t, store, testModelConfig(t))

	m.model.Store(&modelArtifact{
		Intercept: 7.9,
		Weights:   make([]float64, FeatureCount),
		TrainedAt: time.Now(),
	})

	assert.Equal(t, 7, m.PredictDemand(context.Background(), 1, 0, 12))
}

func TestLoadArtifactIgnoresMalformedFile(t *testing.T) {
	store := newMockStore()
	store.addMeal(1, 6.99, models.CategoryLunch)
	cfg := testModelConfig(t)

	require.NoError(t, os.WriteFile(cfg.ArtifactPath, []byte("{not json"), 0644))

	m := newTestModel(t, store, cfg)
	assert.False(t, m.Trained())
}

func TestPredictDemandAuditRow(t *testing.T) {
	store := newMockStore()
	store.addMeal(1, 6.99, models.CategoryLunch)
	cfg := testModelConfig(t)
	cfg.AuditPredictions = true
	m := newTestModel(t, store, cfg)

	got := m.PredictDemand(context.Background(), 1, 0, 12)
	require.Equal(t, 10, got)

	require.Len(t, store.predictions, 1)
	assert.Equal(t, int64(1), store.predictions[0].MealID)
	assert.Equal(t, "12:00", store.predictions[0].TimeSlot)
	assert.Equal(t, 10, store.predictions[0].PredictedDemand)
}

func TestSplitIndicesDeterministic(t *testing.T) {
	trainA, testA := splitIndices(100, 0.2, 42)
	trainB, testB := splitIndices(100, 0.2, 42)

	assert.Equal(t, trainA, trainB)
	assert.Equal(t, testA, testB)
	assert.Len(t, testA, 20)
	assert.Len(t, trainA, 80)
}
