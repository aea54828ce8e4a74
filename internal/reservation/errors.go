package reservation

import "errors"

var (
	// ErrMealNotFound means the referenced meal does not exist.
	ErrMealNotFound = errors.New("meal not found")
	// ErrReservationNotFound means the referenced reservation does not exist.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrInsufficientStock means the meal has fewer units than requested.
	// Nothing is mutated when it is returned.
	ErrInsufficientStock = errors.New("insufficient stock available")
	// ErrInvalidPickupTime means the pickup timestamp is missing or unparsable.
	ErrInvalidPickupTime = errors.New("invalid pickup time")
	// ErrInvalidQuantity means the requested quantity is not a positive integer.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrReservationLimit means the user already holds the maximum number of
	// active reservations.
	ErrReservationLimit = errors.New("active reservation limit reached")
	// ErrMealBusy means the per-meal lock could not be acquired.
	ErrMealBusy = errors.New("meal is being reserved by another request, try again")
)
