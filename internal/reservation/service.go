package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-canteen/internal/logger"
	"ms-canteen/internal/models"
	"ms-canteen/internal/utils"
)

// tokenAttempts bounds the collision-retry loop; the store's uniqueness
// constraint on the token column is the final guarantee.
const tokenAttempts = 5

type DBLayer interface {
	GetMealByID(ctx context.Context, id int64) (*models.Meal, error)
	ReserveMeal(ctx context.Context, res models.Reservation) error
	CancelPendingReservation(ctx context.Context, reservationID string, userID int64) (bool, error)
	CompleteReservation(ctx context.Context, reservationID string) (bool, error)
	GetReservationByID(ctx context.Context, id string) (*models.Reservation, error)
	GetReservationsByUser(ctx context.Context, userID int64) ([]models.Reservation, error)
	CountActiveReservationsByUser(ctx context.Context, userID int64) (int, error)
	TokenExists(ctx context.Context, token string) (bool, error)
}

type MealLock interface {
	LockMeal(mealID int64, holder string) (bool, error)
	UnlockMeal(mealID int64, holder string) error
}

type EventPublisher interface {
	PublishReservationCreated(res models.Reservation) error
	PublishReservationCancelled(res models.Reservation) error
	PublishReservationCompleted(res models.Reservation) error
}

// Service owns reservation status transitions and the stock consistency
// contract. The store applies stock decrement + reservation insert as one
// transaction; the per-meal lock only serializes contenders in front of it.
type Service struct {
	DB        DBLayer
	Lock      MealLock
	Events    EventPublisher
	Logger    *logger.Logger
	MaxActive int
}

func NewService(db DBLayer, lock MealLock, events EventPublisher, log *logger.Logger, maxActive int) *Service {
	return &Service{DB: db, Lock: lock, Events: events, Logger: log, MaxActive: maxActive}
}

// CreateReservation validates the request, deducts stock atomically and
// returns the created reservation in confirmed status, pickup token included.
func (s *Service) CreateReservation(ctx context.Context, userID, mealID int64, pickupTime time.Time, quantity int) (*models.Reservation, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if pickupTime.IsZero() {
		return nil, ErrInvalidPickupTime
	}

	meal, err := s.DB.GetMealByID(ctx, mealID)
	if err != nil {
		return nil, err
	}

	if s.MaxActive > 0 {
		active, err := s.DB.CountActiveReservationsByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to count active reservations: %w", err)
		}
		if active >= s.MaxActive {
			return nil, ErrReservationLimit
		}
	}

	// Fast pre-check; the conditional decrement below is the real guard.
	if meal.Stock < quantity {
		return nil, ErrInsufficientStock
	}

	reservationID := uuid.NewString()

	if s.Lock != nil {
		ok, err := s.Lock.LockMeal(mealID, reservationID)
		if err != nil {
			return nil, fmt.Errorf("meal lock error: %w", err)
		}
		if !ok {
			return nil, ErrMealBusy
		}
		defer func() {
			if err := s.Lock.UnlockMeal(mealID, reservationID); err != nil && s.Logger != nil {
				s.Logger.Warn("RESERVATION", fmt.Sprintf("failed to unlock meal %d: %v", mealID, err))
			}
		}()
	}

	token, err := s.generateToken(ctx)
	if err != nil {
		return nil, err
	}

	res := models.Reservation{
		ID:         reservationID,
		UserID:     userID,
		MealID:     mealID,
		PickupTime: pickupTime,
		Quantity:   quantity,
		Status:     models.StatusConfirmed,
		Token:      token,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.DB.ReserveMeal(ctx, res); err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.LogReservation("CREATE", res.ID, fmt.Sprintf("meal %d x%d, token %s", mealID, quantity, token))
	}

	if s.Events != nil {
		if err := s.Events.PublishReservationCreated(res); err != nil && s.Logger != nil {
			s.Logger.Warn("KAFKA", fmt.Sprintf("publish reservation created failed: %v", err))
		}
	}

	return &res, nil
}

// CancelReservation refunds a pending reservation owned by the given user.
// It returns false (no error) for not-found, not-owned and wrong-status alike;
// a second call after success is a no-op, never a double refund.
func (s *Service) CancelReservation(ctx context.Context, reservationID string, userID int64) (bool, error) {
	res, err := s.DB.GetReservationByID(ctx, reservationID)
	if errors.Is(err, ErrReservationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if res.UserID != userID {
		return false, nil
	}

	if s.Lock != nil {
		ok, err := s.Lock.LockMeal(res.MealID, reservationID)
		if err != nil {
			return false, fmt.Errorf("meal lock error: %w", err)
		}
		if !ok {
			return false, ErrMealBusy
		}
		defer func() {
			if err := s.Lock.UnlockMeal(res.MealID, reservationID); err != nil && s.Logger != nil {
				s.Logger.Warn("RESERVATION", fmt.Sprintf("failed to unlock meal %d: %v", res.MealID, err))
			}
		}()
	}

	cancelled, err := s.DB.CancelPendingReservation(ctx, reservationID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel reservation %s: %w", reservationID, err)
	}
	if !cancelled {
		return false, nil
	}

	if s.Logger != nil {
		s.Logger.LogReservation("CANCEL", reservationID, fmt.Sprintf("restored %d units to meal %d", res.Quantity, res.MealID))
	}

	if s.Events != nil {
		res.Status = models.StatusCancelled
		if err := s.Events.PublishReservationCancelled(*res); err != nil && s.Logger != nil {
			s.Logger.Warn("KAFKA", fmt.Sprintf("publish reservation cancelled failed: %v", err))
		}
	}

	return true, nil
}

// CompleteReservation marks a pending or confirmed reservation as picked up.
// Terminal; no stock effect.
func (s *Service) CompleteReservation(ctx context.Context, reservationID string) (bool, error) {
	res, err := s.DB.GetReservationByID(ctx, reservationID)
	if errors.Is(err, ErrReservationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	completed, err := s.DB.CompleteReservation(ctx, reservationID)
	if err != nil {
		return false, fmt.Errorf("failed to complete reservation %s: %w", reservationID, err)
	}
	if !completed {
		return false, nil
	}

	if s.Logger != nil {
		s.Logger.LogReservation("COMPLETE", reservationID, "reservation redeemed")
	}

	if s.Events != nil {
		res.Status = models.StatusCompleted
		if err := s.Events.PublishReservationCompleted(*res); err != nil && s.Logger != nil {
			s.Logger.Warn("KAFKA", fmt.Sprintf("publish reservation completed failed: %v", err))
		}
	}

	return true, nil
}

func (s *Service) GetReservation(ctx context.Context, reservationID string) (*models.Reservation, error) {
	return s.DB.GetReservationByID(ctx, reservationID)
}

func (s *Service) GetReservationsByUser(ctx context.Context, userID int64) ([]models.Reservation, error) {
	return s.DB.GetReservationsByUser(ctx, userID)
}

func (s *Service) generateToken(ctx context.Context) (string, error) {
	for i := 0; i < tokenAttempts; i++ {
		token := utils.GeneratePickupToken()
		exists, err := s.DB.TokenExists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("token uniqueness check failed: %w", err)
		}
		if !exists {
			return token, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique pickup token after %d attempts", tokenAttempts)
}
