package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Reservation holds one meal booking. Stock is deducted atomically with
// creation, so a confirmed row always accounts for its quantity in the meal's
// ledger. Status transitions are owned by the reservation service.
type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID         string    `bun:"id,pk" json:"id"`
	UserID     int64     `bun:"user_id,notnull" json:"user_id"`
	MealID     int64     `bun:"meal_id,notnull" json:"meal_id"`
	PickupTime time.Time `bun:"pickup_time,notnull" json:"pickup_time"`
	Quantity   int       `bun:"quantity,notnull,default:1" json:"quantity"`
	Status     string    `bun:"status,notnull,default:'pending'" json:"status"`
	Token      string    `bun:"token,unique,notnull" json:"token"`
	CreatedAt  time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

type ReservationRequest struct {
	UserID     int64  `json:"user_id"`
	MealID     int64  `json:"meal_id"`
	PickupTime string `json:"pickup_time"`
	Quantity   int    `json:"quantity"`
}

type ReservationResponse struct {
	ID         string    `json:"id"`
	MealID     int64     `json:"meal_id"`
	PickupTime time.Time `json:"pickup_time"`
	Quantity   int       `json:"quantity"`
	Status     string    `json:"status"`
	Token      string    `json:"token"`
}

func (r *Reservation) ToResponse() ReservationResponse {
	return ReservationResponse{
		ID:         r.ID,
		MealID:     r.MealID,
		PickupTime: r.PickupTime,
		Quantity:   r.Quantity,
		Status:     r.Status,
		Token:      r.Token,
	}
}
