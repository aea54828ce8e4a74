package forecast

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-canteen/internal/models"
)

// DB implements Store on the shared record store.
type DB struct {
	bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// HistoricalReservations returns completed and confirmed reservations created
// on or after the cutoff.
func (db *DB) HistoricalReservations(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := db.bun.NewSelect().
		Model(&reservations).
		Where("created_at >= ?", cutoff).
		Where("status IN (?)", bun.In([]string{models.StatusCompleted, models.StatusConfirmed})).
		Scan(ctx)
	return reservations, err
}

// MealByID returns (nil, nil) for meals that have been deleted since the
// reservation history was written.
func (db *DB) MealByID(ctx context.Context, id int64) (*models.Meal, error) {
	var meal models.Meal
	err := db.bun.NewSelect().
		Model(&meal).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

// RecentCompletedQuantities returns the quantities of the most recent
// completed reservations for a meal, newest first, capped at limit.
func (db *DB) RecentCompletedQuantities(ctx context.Context, mealID int64, limit int) ([]int, error) {
	var quantities []int
	err := db.bun.NewSelect().
		Column("quantity").
		Table("reservations").
		Where("meal_id = ? AND status = ?", mealID, models.StatusCompleted).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx, &quantities)
	return quantities, err
}

// PickupTimes returns every recorded pickup timestamp; hour/day-of-week
// bucketing happens in Go so one weekday convention covers all dialects.
func (db *DB) PickupTimes(ctx context.Context) ([]time.Time, error) {
	var times []time.Time
	err := db.bun.NewSelect().
		Column("pickup_time").
		Table("reservations").
		Scan(ctx, &times)
	return times, err
}

func (db *DB) SavePrediction(ctx context.Context, row models.Prediction) error {
	_, err := db.bun.NewInsert().Model(&row).Exec(ctx)
	return err
}

func (db *DB) SaveRushHourSnapshot(ctx context.Context, rows []models.RushHour) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := db.bun.NewInsert().Model(&rows).Exec(ctx)
	return err
}
