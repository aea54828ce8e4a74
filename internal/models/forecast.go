package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RushLevelLow    = "low"
	RushLevelMedium = "medium"
	RushLevelHigh   = "high"
)

// RushHourInfo is one hour's congestion estimate in the serving window.
type RushHourInfo struct {
	Hour  int    `json:"hour"`
	Count int    `json:"count"`
	Level string `json:"level"`
}

// QuietTime is a suggested low-traffic pickup window.
type QuietTime struct {
	Time        string `json:"time"`
	Hour        int    `json:"hour"`
	Traffic     string `json:"traffic"`
	Recommended bool   `json:"recommended"`
}

// Prediction is an audit row pairing a predicted demand with the observed one.
type Prediction struct {
	bun.BaseModel `bun:"table:predictions"`

	ID              int64     `bun:"id,pk,autoincrement" json:"id"`
	MealID          int64     `bun:"meal_id,notnull" json:"meal_id"`
	Date            time.Time `bun:"date,notnull" json:"date"`
	TimeSlot        string    `bun:"time_slot,notnull" json:"time_slot"`
	PredictedDemand int       `bun:"predicted_demand,notnull" json:"predicted_demand"`
	ActualDemand    int       `bun:"actual_demand" json:"actual_demand"`
	CreatedAt       time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// RushHour is an audit snapshot of one classified hour.
type RushHour struct {
	bun.BaseModel `bun:"table:rush_hours"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Date         time.Time `bun:"date,notnull" json:"date"`
	Hour         int       `bun:"hour,notnull" json:"hour"`
	TrafficCount int       `bun:"traffic_count" json:"traffic_count"`
	RushLevel    string    `bun:"rush_level" json:"rush_level"`
	CreatedAt    time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}
