package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-canteen/internal/models"
	"ms-canteen/internal/reservation"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetMealByID(ctx context.Context, id int64) (*models.Meal, error) {
	var meal models.Meal
	err := d.Bun.NewSelect().
		Model(&meal).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reservation.ErrMealNotFound
	}
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

// ReserveMeal applies the stock decrement and the reservation insert as one
// transaction. The decrement is conditional on sufficient stock, so two
// concurrent requests for the last unit cannot both succeed; availability is
// recomputed from the resulting stock in the same statement.
func (d *DB) ReserveMeal(ctx context.Context, res models.Reservation) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*models.Meal)(nil)).
			Set("stock = stock - ?", res.Quantity).
			Set("is_available = stock - ? > 0", res.Quantity).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ? AND stock >= ?", res.MealID, res.Quantity).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			exists, err := tx.NewSelect().
				Model((*models.Meal)(nil)).
				Where("id = ?", res.MealID).
				Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return reservation.ErrMealNotFound
			}
			return reservation.ErrInsufficientStock
		}

		_, err = tx.NewInsert().Model(&res).Exec(ctx)
		return err
	})
}

// CancelPendingReservation flips pending to cancelled and restores the meal's
// stock in one transaction. The status predicate makes the operation
// idempotent: a reservation that is not pending (already cancelled included)
// yields false with no stock effect.
func (d *DB) CancelPendingReservation(ctx context.Context, reservationID string, userID int64) (bool, error) {
	cancelled := false
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var res models.Reservation
		err := tx.NewSelect().
			Model(&res).
			Where("id = ? AND user_id = ?", reservationID, userID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		result, err := tx.NewUpdate().
			Model((*models.Reservation)(nil)).
			Set("status = ?", models.StatusCancelled).
			Where("id = ? AND status = ?", reservationID, models.StatusPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}

		_, err = tx.NewUpdate().
			Model((*models.Meal)(nil)).
			Set("stock = stock + ?", res.Quantity).
			Set("is_available = stock + ? > 0", res.Quantity).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", res.MealID).
			Exec(ctx)
		if err != nil {
			return err
		}

		cancelled = true
		return nil
	})
	return cancelled, err
}

// CompleteReservation transitions pending or confirmed to completed.
// Terminal; returns false when the reservation is missing or already in a
// terminal state.
func (d *DB) CompleteReservation(ctx context.Context, reservationID string) (bool, error) {
	result, err := d.Bun.NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("status = ?", models.StatusCompleted).
		Where("id = ? AND status IN (?)", reservationID, bun.In([]string{models.StatusPending, models.StatusConfirmed})).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *DB) GetReservationByID(ctx context.Context, id string) (*models.Reservation, error) {
	var res models.Reservation
	err := d.Bun.NewSelect().
		Model(&res).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reservation.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (d *DB) GetReservationsByUser(ctx context.Context, userID int64) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := d.Bun.NewSelect().
		Model(&reservations).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (d *DB) CountActiveReservationsByUser(ctx context.Context, userID int64) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Reservation)(nil)).
		Where("user_id = ? AND status IN (?)", userID, bun.In([]string{models.StatusPending, models.StatusConfirmed})).
		Count(ctx)
}

func (d *DB) TokenExists(ctx context.Context, token string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Reservation)(nil)).
		Where("token = ?", token).
		Exists(ctx)
}
