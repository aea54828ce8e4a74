package meals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-canteen/internal/logger"
	"ms-canteen/internal/models"
)

// DBLayer abstracts the meal catalog persistence for testing.
type DBLayer interface {
	GetMealByID(ctx context.Context, id int64) (*models.Meal, error)
	ListMeals(ctx context.Context, category string, availableOnly bool) ([]models.Meal, error)
	InsertMeal(ctx context.Context, meal *models.Meal) error
	UpdateMeal(ctx context.Context, meal *models.Meal) error
	DeleteMeal(ctx context.Context, id int64) error
	CountPendingReservations(ctx context.Context, mealID int64) (int, error)
	DashboardStats(ctx context.Context) (*DashboardStats, error)
	PopularMeals(ctx context.Context, limit int) ([]PopularMeal, error)
}

// DashboardStats is the admin overview payload.
type DashboardStats struct {
	TotalMeals          int `json:"total_meals"`
	TotalStudents       int `json:"total_students"`
	TodaysReservations  int `json:"todays_reservations"`
	PendingReservations int `json:"pending_reservations"`
}

// PopularMeal ranks a meal by how often it has been reserved.
type PopularMeal struct {
	MealID           int64  `json:"meal_id"`
	Name             string `json:"name"`
	ReservationCount int    `json:"reservation_count"`
}

const popularMealsLimit = 5

// Service owns the meal catalog: listing for students, CRUD and stats for
// admins. Stock mutations from the reservation flow happen elsewhere; the
// admin update here is an explicit override.
type Service struct {
	DB     DBLayer
	Logger *logger.Logger
}

func NewService(db DBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, Logger: log}
}

// ListAvailable returns meals students can order right now, optionally
// filtered by category. An unknown category is an error rather than an empty
// list so typos surface immediately.
func (s *Service) ListAvailable(ctx context.Context, category string) ([]models.Meal, error) {
	if category != "" && !models.ValidCategory(category) {
		return nil, ErrInvalidCategory
	}
	return s.DB.ListMeals(ctx, category, true)
}

// ListAll returns every meal regardless of availability, for the admin view.
func (s *Service) ListAll(ctx context.Context, category string) ([]models.Meal, error) {
	if category != "" && !models.ValidCategory(category) {
		return nil, ErrInvalidCategory
	}
	return s.DB.ListMeals(ctx, category, false)
}

func (s *Service) GetMeal(ctx context.Context, id int64) (*models.Meal, error) {
	return s.DB.GetMealByID(ctx, id)
}

// CreateMeal validates and inserts a new catalog entry. Availability is
// derived from the initial stock, never taken from the caller.
func (s *Service) CreateMeal(ctx context.Context, meal *models.Meal) error {
	if err := validateMeal(meal); err != nil {
		return err
	}

	now := time.Now()
	meal.CreatedAt = now
	meal.UpdatedAt = now
	meal.IsAvailable = meal.Stock > 0

	if err := s.DB.InsertMeal(ctx, meal); err != nil {
		return err
	}

	if s.Logger != nil {
		s.Logger.LogStock(meal.ID, fmt.Sprintf("meal %q created with stock %d", meal.Name, meal.Stock))
	}
	return nil
}

// UpdateMeal is the admin override for catalog fields including stock and
// availability. A nil availability follows the stock rule; a non-nil one is
// an explicit admin override and is stored as given, even against the stock.
func (s *Service) UpdateMeal(ctx context.Context, meal *models.Meal, availability *bool) error {
	if err := validateMeal(meal); err != nil {
		return err
	}

	existing, err := s.DB.GetMealByID(ctx, meal.ID)
	if err != nil {
		return err
	}

	meal.CreatedAt = existing.CreatedAt
	meal.UpdatedAt = time.Now()
	if availability != nil {
		meal.IsAvailable = *availability
	} else {
		meal.IsAvailable = meal.Stock > 0
	}

	if err := s.DB.UpdateMeal(ctx, meal); err != nil {
		return err
	}

	if existing.Stock != meal.Stock && s.Logger != nil {
		s.Logger.LogStock(meal.ID, fmt.Sprintf("stock overridden %d -> %d", existing.Stock, meal.Stock))
	}
	return nil
}

// DeleteMeal removes a meal, refusing while pending reservations still
// reference it so those reservations stay resolvable.
func (s *Service) DeleteMeal(ctx context.Context, id int64) error {
	if _, err := s.DB.GetMealByID(ctx, id); err != nil {
		return err
	}

	pending, err := s.DB.CountPendingReservations(ctx, id)
	if err != nil {
		return err
	}
	if pending > 0 {
		return ErrMealHasReservations
	}

	if err := s.DB.DeleteMeal(ctx, id); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.LogStock(id, "meal deleted")
	}
	return nil
}

func (s *Service) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	return s.DB.DashboardStats(ctx)
}

func (s *Service) GetPopularMeals(ctx context.Context) ([]PopularMeal, error) {
	return s.DB.PopularMeals(ctx, popularMealsLimit)
}

func validateMeal(meal *models.Meal) error {
	meal.Name = strings.TrimSpace(meal.Name)
	if meal.Name == "" {
		return ErrInvalidName
	}
	if !models.ValidCategory(meal.Category) {
		return ErrInvalidCategory
	}
	if meal.Price < 0 {
		return ErrInvalidPrice
	}
	if meal.Stock < 0 {
		return ErrInvalidStock
	}
	return nil
}
