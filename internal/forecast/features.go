package forecast

import (
	"context"
	"errors"
	"time"

	"ms-canteen/internal/models"
)

// ErrInsufficientData aborts training without touching the loaded model.
var ErrInsufficientData = errors.New("insufficient training data")

// FeatureCount is the width of the demand feature vector.
const FeatureCount = 8

// FeatureRow is the fixed-shape feature record shared by the training and
// inference paths, so both always agree on field order.
type FeatureRow struct {
	MealID            float64
	DayOfWeek         float64
	Hour              float64
	IsWeekend         float64
	Price             float64
	CategoryBreakfast float64
	CategoryLunch     float64
	CategoryDinner    float64
}

var featureNames = [FeatureCount]string{
	"meal_id", "day_of_week", "hour", "is_weekend",
	"price", "category_breakfast", "category_lunch", "category_dinner",
}

func NewFeatureRow(mealID int64, dayOfWeek, hour int, price float64, category string) FeatureRow {
	row := FeatureRow{
		MealID:    float64(mealID),
		DayOfWeek: float64(dayOfWeek),
		Hour:      float64(hour),
		Price:     price,
	}
	if dayOfWeek >= 5 {
		row.IsWeekend = 1
	}
	switch category {
	case models.CategoryBreakfast:
		row.CategoryBreakfast = 1
	case models.CategoryLunch:
		row.CategoryLunch = 1
	case models.CategoryDinner:
		row.CategoryDinner = 1
	}
	// snack and beverage are the all-zero category encoding
	return row
}

func (r FeatureRow) Vector() []float64 {
	return []float64{
		r.MealID, r.DayOfWeek, r.Hour, r.IsWeekend,
		r.Price, r.CategoryBreakfast, r.CategoryLunch, r.CategoryDinner,
	}
}

// WeekdayIndex maps a timestamp to Monday=0 … Sunday=6. The same convention
// is used for feature extraction and rush-hour matching; nothing depends on a
// store-specific day numbering.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Dataset holds the aggregated feature matrix and its aligned demand labels.
type Dataset struct {
	Features []FeatureRow
	Labels   []float64
}

type bucketKey struct {
	MealID    int64
	DayOfWeek int
	Hour      int
}

// Extractor turns historical reservations into the per-(meal, day-of-week,
// hour) training dataset.
type Extractor struct {
	Store      Store
	Lookback   time.Duration
	MinSamples int
}

func NewExtractor(store Store, lookback time.Duration, minSamples int) *Extractor {
	return &Extractor{Store: store, Lookback: lookback, MinSamples: minSamples}
}

// Extract reads completed and confirmed reservations inside the lookback
// window and aggregates them per bucket: demand is the summed quantity, the
// remaining features take the first observed value (constant within a
// bucket). Reservations whose meal is gone are dropped. Fewer aggregated
// rows than MinSamples yields ErrInsufficientData.
func (e *Extractor) Extract(ctx context.Context) (*Dataset, error) {
	cutoff := time.Now().UTC().Add(-e.Lookback)
	reservations, err := e.Store.HistoricalReservations(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		row    FeatureRow
		demand float64
	}

	buckets := make(map[bucketKey]*bucket)
	var order []bucketKey
	mealCache := make(map[int64]*models.Meal)

	for _, res := range reservations {
		meal, ok := mealCache[res.MealID]
		if !ok {
			meal, err = e.Store.MealByID(ctx, res.MealID)
			if err != nil {
				return nil, err
			}
			mealCache[res.MealID] = meal
		}
		if meal == nil {
			continue
		}

		key := bucketKey{
			MealID:    res.MealID,
			DayOfWeek: WeekdayIndex(res.PickupTime),
			Hour:      res.PickupTime.Hour(),
		}

		if b, exists := buckets[key]; exists {
			b.demand += float64(res.Quantity)
			continue
		}
		buckets[key] = &bucket{
			row:    NewFeatureRow(key.MealID, key.DayOfWeek, key.Hour, meal.Price, meal.Category),
			demand: float64(res.Quantity),
		}
		order = append(order, key)
	}

	if len(buckets) < e.MinSamples {
		return nil, ErrInsufficientData
	}

	ds := &Dataset{
		Features: make([]FeatureRow, 0, len(order)),
		Labels:   make([]float64, 0, len(order)),
	}
	for _, key := range order {
		ds.Features = append(ds.Features, buckets[key].row)
		ds.Labels = append(ds.Labels, buckets[key].demand)
	}
	return ds, nil
}
