package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-canteen/internal/models"
)

// Mock implementations for testing

type MockDB struct {
	mu           sync.Mutex
	meals        map[int64]*models.Meal
	reservations map[string]*models.Reservation
	tokens       map[string]bool
	shouldFailOn string
	errorMsg     string
}

func NewMockDB() *MockDB {
	return &MockDB{
		meals:        make(map[int64]*models.Meal),
		reservations: make(map[string]*models.Reservation),
		tokens:       make(map[string]bool),
	}
}

func (m *MockDB) GetMealByID(ctx context.Context, id int64) (*models.Meal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailOn == "GetMealByID" {
		return nil, errors.New(m.errorMsg)
	}
	meal, exists := m.meals[id]
	if !exists {
		return nil, ErrMealNotFound
	}
	m2 := *meal
	return &m2, nil
}

func (m *MockDB) ReserveMeal(ctx context.Context, res models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailOn == "ReserveMeal" {
		return errors.New(m.errorMsg)
	}
	meal, exists := m.meals[res.MealID]
	if !exists {
		return ErrMealNotFound
	}
	if meal.Stock < res.Quantity {
		return ErrInsufficientStock
	}
	meal.Stock -= res.Quantity
	meal.IsAvailable = meal.Stock > 0
	m.reservations[res.ID] = &res
	m.tokens[res.Token] = true
	return nil
}

func (m *MockDB) CancelPendingReservation(ctx context.Context, reservationID string, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailOn == "CancelPendingReservation" {
		return false, errors.New(m.errorMsg)
	}
	res, exists := m.reservations[reservationID]
	if !exists || res.UserID != userID {
		return false, nil
	}
	if res.Status != models.StatusPending {
		return false, nil
	}
	res.Status = models.StatusCancelled
	meal := m.meals[res.MealID]
	meal.Stock += res.Quantity
	meal.IsAvailable = meal.Stock > 0
	return true, nil
}

func (m *MockDB) CompleteReservation(ctx context.Context, reservationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailOn == "CompleteReservation" {
		return false, errors.New(m.errorMsg)
	}
	res, exists := m.reservations[reservationID]
	if !exists {
		return false, nil
	}
	if res.Status != models.StatusPending && res.Status != models.StatusConfirmed {
		return false, nil
	}
	res.Status = models.StatusCompleted
	return true, nil
}

func (m *MockDB) GetReservationByID(ctx context.Context, id string) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailOn == "GetReservationByID" {
		return nil, errors.New(m.errorMsg)
	}
	res, exists := m.reservations[id]
	if !exists {
		return nil, ErrReservationNotFound
	}
	r2 := *res
	return &r2, nil
}

func (m *MockDB) GetReservationsByUser(ctx context.Context, userID int64) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Reservation
	for _, res := range m.reservations {
		if res.UserID == userID {
			result = append(result, *res)
		}
	}
	return result, nil
}

func (m *MockDB) CountActiveReservationsByUser(ctx context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailOn == "CountActiveReservationsByUser" {
		return 0, errors.New(m.errorMsg)
	}
	count := 0
	for _, res := range m.reservations {
		if res.UserID == userID && (res.Status == models.StatusPending || res.Status == models.StatusConfirmed) {
			count++
		}
	}
	return count, nil
}

func (m *MockDB) TokenExists(ctx context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailOn == "TokenExists" {
		return false, errors.New(m.errorMsg)
	}
	return m.tokens[token], nil
}

type MockPublisher struct {
	mu        sync.Mutex
	created   []models.Reservation
	cancelled []models.Reservation
	completed []models.Reservation
}

func (p *MockPublisher) PublishReservationCreated(res models.Reservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, res)
	return nil
}

func (p *MockPublisher) PublishReservationCancelled(res models.Reservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, res)
	return nil
}

func (p *MockPublisher) PublishReservationCompleted(res models.Reservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, res)
	return nil
}

func newTestService(db *MockDB) (*Service, *MockPublisher) {
	publisher := &MockPublisher{}
	return NewService(db, nil, publisher, nil, 3), publisher
}

func addMeal(db *MockDB, id int64, stock int) {
	db.meals[id] = &models.Meal{
		ID:          id,
		Name:        "Chicken Curry with Rice",
		Price:       6.99,
		Category:    models.CategoryLunch,
		Stock:       stock,
		IsAvailable: stock > 0,
	}
}

func pickupAt(hour int) time.Time {
	return time.Now().Add(24 * time.Hour).Truncate(time.Hour).Add(time.Duration(hour) * time.Hour)
}

func TestCreateReservationDeductsStock(t *testing.T) {
	db := NewMockDB()
	addMeal(db, 1, 10)
	svc, publisher := newTestService(db)

	res, err := svc.CreateReservation(context.Background(), 42, 1, pickupAt(12), 3)
	require.NoError(t, err)

	assert.Equal(t, models.StatusConfirmed, res.Status)
	assert.Len(t, res.Token, 8)
	assert.Equal(t, 7, db.meals[1].Stock)
	assert.Len(t, publisher.created, 1)
}

func TestCreateReservationInvalidQuantity(t *testing.T) {
	db := NewMockDB()
	addMeal(db, 1, 10)
	svc, _ := newTestService(db)

	_, err := svc.CreateReservation(context.Background(), 42, 1, pickupAt(12), 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateReservation(context.Background(), 42, 1, pickupAt(12), -2)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCreateReservationUnknownMeal(t *testing.T) {
	db := NewMockDB()
	svc, _ := newTestService(db)

	_, err := svc.CreateReservation(context.Background(), 42, 99, pickupAt(12), 1)
	assert.ErrorIs(t, err, ErrMealNotFound)
}

func TestCreateReservationInsufficientStock(t *testing.T) {
	db := NewMockDB()
	addMeal(db, 1, 2)
	svc, _ := newTestService(db)

	_, err := svc.CreateReservation(context.Background(), 42, 1, pickupAt(12), 5)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, db.meals[1].Stock)
}

func TestCreateReservationPerUserLimit(t *testing.T) {
	db := NewMockDB()
	addMeal(db, 1, 100)
	svc, _ := newTestService(db)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateReservation(context.Background(), 42, 1, pickupAt(12), 1)
		require.NoError(t, err)
	}

	_, err := svc.CreateReservation(context.Background(), 42, 1, pickupAt(12), 1)
	assert.ErrorIs(t, err, ErrReservationLimit)

	// A different user is not affected by the first user's cap.
	_, err = svc.CreateReservation(context.Background(), 7, 1, pickupAt(12), 1)
	assert.NoError(t, err)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	db := NewMockDB()
	addMeal(db, 1, 1)
	publisher := &MockPublisher{}
	svc := NewService(db, nil, publisher, nil, 0)

	const contenders = 8
	var wg sync.WaitGroup
	errs := make(chan error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := svc.CreateReservation(context.Background(), userID, 1, pickupAt(12), 1)
			errs <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, db.meals[1].Stock)
}

func TestCancelReservationRestoresStockOnce(t *testing.T) {
	db := NewMockDB()
	addMeal(db, 1, 10)
	svc, publisher := newTestService(db)

	res, err := svc.CreateReservation(context.Background(), 42, 1, pickupAt(12), 4)
	require.NoError(t, err)
	require.Equal(t, 6, db.meals[1].Stock)

	// The engine cancels pending reservations only.
	db.reservations[res.ID].Status = models.StatusPending

	cancelled, err := svc.CancelReservation(context.Background(), res.ID, 42)
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.Equal(t, 10, db.meals[1].Stock)
	assert.Len(t, publisher.cancelled, 1)

	// Second cancel is a no-op, never a double refund.
	cancelled, err = svc.CancelReservation(context.Background(), res.ID, 42)
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, 10, db.meals[1].Stock)
	assert.Len(t, publisher.cancelled, 1)
}

func TestCancelReservationNotOwner(t *testing.T) {
	db := NewMockDB()
	addMeal(db, 1, 10)
	svc, _ := newTestService(db)

	res, err := svc.CreateReservation(context.Background(), 42, 1, pickupAt(12), 1)
	require.NoError(t, err)
	db.reservations[res.ID].Status = models.StatusPending

	cancelled, err := svc.CancelReservation(context.Background(), res.ID, 7)
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, 9, db.meals[1].Stock)
}

func TestCancelReservationNotFound(t *testing.T) {
	db := NewMockDB()
	svc, _ := newTestService(db)

	cancelled, err := svc.CancelReservation(context.Background(), "missing-id", 42)
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestCompleteReservation(t *testing.T) {
	db := NewMockDB()
	addMeal(db, 1, 10)
	svc, publisher := newTestService(db)

	res, err := svc.CreateReservation(context.Background(), 42, 1, pickupAt(12), 2)
	require.NoError(t, err)

	completed, err := svc.CompleteReservation(context.Background(), res.ID)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, models.StatusCompleted, db.reservations[res.ID].Status)
	// Completion never touches stock.
	assert.Equal(t, 8, db.meals[1].Stock)
	assert.Len(t, publisher.completed, 1)

	// Already terminal.
	completed, err = svc.CompleteReservation(context.Background(), res.ID)
	require.NoError(t, err)
	assert.False(t, completed)
}

func TestCompletedReservationCannotBeCancelled(t *testing.T) {
	db := NewMockDB()
	addMeal(db, 1, 10)
	svc, _ := newTestService(db)

	res, err := svc.CreateReservation(context.Background(), 42, 1, pickupAt(12), 2)
	require.NoError(t, err)

	_, err = svc.CompleteReservation(context.Background(), res.ID)
	require.NoError(t, err)

	cancelled, err := svc.CancelReservation(context.Background(), res.ID, 42)
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, 8, db.meals[1].Stock)
}

func TestGenerateTokenRetriesOnCollision(t *testing.T) {
	db := NewMockDB()
	addMeal(db, 1, 10)
	svc, _ := newTestService(db)

	// Pre-existing reservations occupy their tokens; a fresh create must pick
	// a token that is not taken.
	first, err := svc.CreateReservation(context.Background(), 1, 1, pickupAt(12), 1)
	require.NoError(t, err)

	second, err := svc.CreateReservation(context.Background(), 2, 1, pickupAt(12), 1)
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
}

func TestCreateReservationDBFailure(t *testing.T) {
	db := NewMockDB()
	addMeal(db, 1, 10)
	db.shouldFailOn = "TokenExists"
	db.errorMsg = "connection reset"
	svc, _ := newTestService(db)

	_, err := svc.CreateReservation(context.Background(), 42, 1, pickupAt(12), 1)
	assert.Error(t, err)
}
