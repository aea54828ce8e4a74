package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sajari/regression"

	"ms-canteen/internal/config"
	"ms-canteen/internal/logger"
	"ms-canteen/internal/models"
)

// modelArtifact is one complete fitted model: an intercept plus one weight
// per feature. It is replaced wholesale on every successful training run and
// is the unit persisted to disk.
type modelArtifact struct {
	Intercept float64   `json:"intercept"`
	Weights   []float64 `json:"weights"`
	TrainedAt time.Time `json:"trained_at"`
	MAE       float64   `json:"mae"`
	R2        float64   `json:"r2"`
	Samples   int       `json:"samples"`
}

func (a *modelArtifact) predict(row FeatureRow) float64 {
	sum := a.Intercept
	for i, x := range row.Vector() {
		sum += a.Weights[i] * x
	}
	return sum
}

// DemandModel predicts expected order volume for a (meal, day-of-week, hour)
// bucket. Concurrent prediction calls read an atomic snapshot of the fitted
// model; training publishes a full replacement, so readers never see a
// half-updated model.
type DemandModel struct {
	store     Store
	extractor *Extractor
	cfg       config.ModelConfig
	logger    *logger.Logger
	model     atomic.Pointer[modelArtifact]
}

func NewDemandModel(store Store, extractor *Extractor, cfg config.ModelConfig, log *logger.Logger) *DemandModel {
	m := &DemandModel{store: store, extractor: extractor, cfg: cfg, logger: log}
	m.loadArtifact()
	return m
}

// Trained reports whether a fitted model is currently loaded.
func (m *DemandModel) Trained() bool {
	return m.model.Load() != nil
}

// Train extracts the dataset, fits a least-squares model on a deterministic
// 80/20 split and swaps it in. Insufficient data returns (false, nil) and
// leaves the loaded model untouched. MAE and R² on the held-out split are
// logged for observability only and never gate acceptance.
func (m *DemandModel) Train(ctx context.Context) (bool, error) {
	ds, err := m.extractor.Extract(ctx)
	if errors.Is(err, ErrInsufficientData) {
		if m.logger != nil {
			m.logger.Warn("MODEL", "not enough aggregated rows to train, keeping current model")
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}

	trainIdx, testIdx := splitIndices(len(ds.Features), m.cfg.TestSplit, m.cfg.Seed)

	r := new(regression.Regression)
	r.SetObserved("demand")
	for i, name := range featureNames {
		r.SetVar(i, name)
	}
	for _, i := range trainIdx {
		r.Train(regression.DataPoint(ds.Labels[i], ds.Features[i].Vector()))
	}
	if err := r.Run(); err != nil {
		return false, fmt.Errorf("regression fit failed: %w", err)
	}

	art := &modelArtifact{
		Intercept: r.Coeff(0),
		Weights:   make([]float64, FeatureCount),
		TrainedAt: time.Now().UTC(),
		Samples:   len(trainIdx),
	}
	for i := 0; i < FeatureCount; i++ {
		art.Weights[i] = r.Coeff(i + 1)
	}
	art.MAE, art.R2 = evaluate(art, ds, testIdx)

	if m.logger != nil {
		m.logger.LogModel("TRAIN", fmt.Sprintf("fitted on %d rows, MAE=%.2f R2=%.2f", len(trainIdx), art.MAE, art.R2))
	}

	m.model.Store(art)

	if err := m.saveArtifact(art); err != nil && m.logger != nil {
		m.logger.Warn("MODEL", fmt.Sprintf("failed to persist model artifact: %v", err))
	}

	return true, nil
}

// PredictDemand returns the expected order volume as a non-negative integer.
// Unknown meals yield 0. Any failure on the model path falls back to the
// historical average, which always produces a plausible positive value.
func (m *DemandModel) PredictDemand(ctx context.Context, mealID int64, dayOfWeek, hour int) int {
	meal, err := m.store.MealByID(ctx, mealID)
	if err != nil || meal == nil {
		return 0
	}

	row := NewFeatureRow(mealID, dayOfWeek, hour, meal.Price, meal.Category)

	if art := m.model.Load(); art != nil {
		pred := art.predict(row)
		if !math.IsNaN(pred) && !math.IsInf(pred, 0) {
			demand := int(pred)
			if pred < 0 {
				demand = 0
			}
			m.auditPrediction(ctx, mealID, hour, demand)
			return demand
		}
	}

	demand := m.averageHistoricalDemand(ctx, mealID)
	m.auditPrediction(ctx, mealID, hour, demand)
	return demand
}

// auditPrediction records the prediction for later comparison with observed
// demand. Best effort; disabled by default.
func (m *DemandModel) auditPrediction(ctx context.Context, mealID int64, hour, demand int) {
	if !m.cfg.AuditPredictions {
		return
	}
	row := models.Prediction{
		MealID:          mealID,
		Date:            time.Now().UTC(),
		TimeSlot:        fmt.Sprintf("%02d:00", hour),
		PredictedDemand: demand,
	}
	if err := m.store.SavePrediction(ctx, row); err != nil && m.logger != nil {
		m.logger.Warn("MODEL", fmt.Sprintf("failed to save prediction audit row: %v", err))
	}
}

// averageHistoricalDemand is the last line of defense; it never fails.
func (m *DemandModel) averageHistoricalDemand(ctx context.Context, mealID int64) int {
	quantities, err := m.store.RecentCompletedQuantities(ctx, mealID, m.cfg.FallbackWindow)
	if err != nil || len(quantities) == 0 {
		return m.cfg.FallbackDefault
	}

	total := 0
	for _, q := range quantities {
		total += q
	}
	avg := int(math.Round(float64(total) / float64(len(quantities))))
	if avg < m.cfg.FallbackFloor {
		return m.cfg.FallbackFloor
	}
	return avg
}

func (m *DemandModel) loadArtifact() {
	data, err := os.ReadFile(m.cfg.ArtifactPath)
	if err != nil {
		if m.logger != nil && !os.IsNotExist(err) {
			m.logger.Warn("MODEL", fmt.Sprintf("failed to read model artifact: %v", err))
		}
		return
	}

	var art modelArtifact
	if err := json.Unmarshal(data, &art); err != nil || len(art.Weights) != FeatureCount {
		if m.logger != nil {
			m.logger.Warn("MODEL", fmt.Sprintf("ignoring malformed model artifact at %s", m.cfg.ArtifactPath))
		}
		return
	}

	m.model.Store(&art)
	if m.logger != nil {
		m.logger.LogModel("LOAD", fmt.Sprintf("loaded model from %s (trained %s)", m.cfg.ArtifactPath, art.TrainedAt.Format(time.RFC3339)))
	}
}

// saveArtifact overwrites the artifact atomically via tmp+rename so a reader
// never observes a torn file.
func (m *DemandModel) saveArtifact(art *modelArtifact) error {
	if err := os.MkdirAll(filepath.Dir(m.cfg.ArtifactPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return err
	}

	tmp := m.cfg.ArtifactPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, m.cfg.ArtifactPath)
}

// splitIndices shuffles deterministically and carves off the test fraction.
func splitIndices(n int, testSplit float64, seed int64) (train, test []int) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	testCount := int(float64(n) * testSplit)
	if testCount >= n {
		testCount = n - 1
	}
	return idx[testCount:], idx[:testCount]
}

func evaluate(art *modelArtifact, ds *Dataset, testIdx []int) (mae, r2 float64) {
	if len(testIdx) == 0 {
		return 0, 0
	}

	var sumAbs, sumObserved float64
	for _, i := range testIdx {
		pred := art.predict(ds.Features[i])
		sumAbs += math.Abs(pred - ds.Labels[i])
		sumObserved += ds.Labels[i]
	}
	mae = sumAbs / float64(len(testIdx))

	mean := sumObserved / float64(len(testIdx))
	var ssRes, ssTot float64
	for _, i := range testIdx {
		pred := art.predict(ds.Features[i])
		ssRes += (ds.Labels[i] - pred) * (ds.Labels[i] - pred)
		ssTot += (ds.Labels[i] - mean) * (ds.Labels[i] - mean)
	}
	if ssTot == 0 {
		return mae, 0
	}
	return mae, 1 - ssRes/ssTot
}
