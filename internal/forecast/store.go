package forecast

import (
	"context"
	"time"

	"ms-canteen/internal/models"
)

// Store is the record-store surface the forecasting subsystem reads.
// MealByID returns (nil, nil) for meals that no longer exist so callers can
// skip orphaned history instead of failing on it.
type Store interface {
	HistoricalReservations(ctx context.Context, cutoff time.Time) ([]models.Reservation, error)
	MealByID(ctx context.Context, id int64) (*models.Meal, error)
	RecentCompletedQuantities(ctx context.Context, mealID int64, limit int) ([]int, error)
	PickupTimes(ctx context.Context) ([]time.Time, error)
	SaveRushHourSnapshot(ctx context.Context, rows []models.RushHour) error
	SavePrediction(ctx context.Context, row models.Prediction) error
}
