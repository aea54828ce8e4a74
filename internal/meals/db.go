package meals

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-canteen/internal/models"
)

// DB implements DBLayer on bun.
type DB struct {
	Bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{Bun: db}
}

func (db *DB) GetMealByID(ctx context.Context, id int64) (*models.Meal, error) {
	var meal models.Meal
	err := db.Bun.NewSelect().
		Model(&meal).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMealNotFound
	}
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

func (db *DB) ListMeals(ctx context.Context, category string, availableOnly bool) ([]models.Meal, error) {
	meals := make([]models.Meal, 0)
	query := db.Bun.NewSelect().Model(&meals)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if availableOnly {
		query = query.Where("is_available = ?", true)
	}
	err := query.Order("category ASC", "name ASC").Scan(ctx)
	return meals, err
}

func (db *DB) InsertMeal(ctx context.Context, meal *models.Meal) error {
	_, err := db.Bun.NewInsert().Model(meal).Exec(ctx)
	return err
}

func (db *DB) UpdateMeal(ctx context.Context, meal *models.Meal) error {
	res, err := db.Bun.NewUpdate().
		Model(meal).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrMealNotFound
	}
	return nil
}

func (db *DB) DeleteMeal(ctx context.Context, id int64) error {
	_, err := db.Bun.NewDelete().
		Model((*models.Meal)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (db *DB) CountPendingReservations(ctx context.Context, mealID int64) (int, error) {
	return db.Bun.NewSelect().
		Model((*models.Reservation)(nil)).
		Where("meal_id = ? AND status = ?", mealID, models.StatusPending).
		Count(ctx)
}

func (db *DB) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	var err error
	stats.TotalMeals, err = db.Bun.NewSelect().
		Model((*models.Meal)(nil)).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	stats.TotalStudents, err = db.Bun.NewSelect().
		Model((*models.User)(nil)).
		Where("role = ?", models.RoleStudent).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	stats.TodaysReservations, err = db.Bun.NewSelect().
		Model((*models.Reservation)(nil)).
		Where("created_at >= ?", startOfDay).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	stats.PendingReservations, err = db.Bun.NewSelect().
		Model((*models.Reservation)(nil)).
		Where("status = ?", models.StatusPending).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (db *DB) PopularMeals(ctx context.Context, limit int) ([]PopularMeal, error) {
	popular := make([]PopularMeal, 0, limit)
	err := db.Bun.NewRaw(
		`SELECT m.id AS meal_id, m.name, COUNT(r.id) AS reservation_count
		 FROM meals m
		 JOIN reservations r ON r.meal_id = m.id
		 GROUP BY m.id, m.name
		 ORDER BY reservation_count DESC
		 LIMIT ?`, limit).
		Scan(ctx, &popular)
	return popular, err
}
