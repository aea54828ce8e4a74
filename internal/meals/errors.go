package meals

import "errors"

var (
	ErrMealNotFound        = errors.New("meal not found")
	ErrInvalidName         = errors.New("meal name is required")
	ErrInvalidCategory     = errors.New("invalid meal category")
	ErrInvalidPrice        = errors.New("price must be non-negative")
	ErrInvalidStock        = errors.New("stock must be non-negative")
	ErrMealHasReservations = errors.New("meal has pending reservations")
)
