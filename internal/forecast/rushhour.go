package forecast

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ms-canteen/internal/logger"
	"ms-canteen/internal/models"
)

// Serving window: rush levels are estimated for 08:00 through 20:00 inclusive.
const (
	RushWindowStart = 8
	RushWindowEnd   = 20
)

const maxQuietSuggestions = 3

// RushEstimator classifies per-hour congestion from historical pickup counts.
// It is count-based and independent of the trained demand model.
type RushEstimator struct {
	Store         Store
	Logger        *logger.Logger
	LowThreshold  int
	HighThreshold int
	Audit         bool
}

func NewRushEstimator(store Store, log *logger.Logger, lowThreshold, highThreshold int, audit bool) *RushEstimator {
	return &RushEstimator{
		Store:         store,
		Logger:        log,
		LowThreshold:  lowThreshold,
		HighThreshold: highThreshold,
		Audit:         audit,
	}
}

// PredictRushHours counts historical pickups whose hour and day-of-week match
// the target date and classifies every hour in the serving window. The result
// always covers hours 8 through 20 inclusive.
func (e *RushEstimator) PredictRushHours(ctx context.Context, targetDate time.Time) (map[int]models.RushHourInfo, error) {
	pickups, err := e.Store.PickupTimes(ctx)
	if err != nil {
		return nil, err
	}

	targetDay := WeekdayIndex(targetDate)
	counts := make(map[int]int)
	for _, t := range pickups {
		if WeekdayIndex(t) != targetDay {
			continue
		}
		counts[t.Hour()]++
	}

	result := make(map[int]models.RushHourInfo, RushWindowEnd-RushWindowStart+1)
	for hour := RushWindowStart; hour <= RushWindowEnd; hour++ {
		count := counts[hour]
		result[hour] = models.RushHourInfo{
			Hour:  hour,
			Count: count,
			Level: e.ClassifyRushLevel(count),
		}
	}

	if e.Audit {
		e.auditSnapshot(ctx, targetDate, result)
	}

	return result, nil
}

// ClassifyRushLevel applies the fixed thresholds; no normalization by
// historical volume.
func (e *RushEstimator) ClassifyRushLevel(count int) string {
	switch {
	case count < e.LowThreshold:
		return models.RushLevelLow
	case count < e.HighThreshold:
		return models.RushLevelMedium
	default:
		return models.RushLevelHigh
	}
}

// QuietTimeSuggestions returns up to three low-traffic hours, ascending, as
// displayable hour ranges.
func (e *RushEstimator) QuietTimeSuggestions(ctx context.Context, targetDate time.Time) ([]models.QuietTime, error) {
	rushHours, err := e.PredictRushHours(ctx, targetDate)
	if err != nil {
		return nil, err
	}

	hours := make([]int, 0, len(rushHours))
	for hour := range rushHours {
		hours = append(hours, hour)
	}
	sort.Ints(hours)

	quiet := make([]models.QuietTime, 0, maxQuietSuggestions)
	for _, hour := range hours {
		if rushHours[hour].Level != models.RushLevelLow {
			continue
		}
		quiet = append(quiet, models.QuietTime{
			Time:        fmt.Sprintf("%02d:00 - %02d:00", hour, hour+1),
			Hour:        hour,
			Traffic:     "Light",
			Recommended: true,
		})
		if len(quiet) == maxQuietSuggestions {
			break
		}
	}
	return quiet, nil
}

func (e *RushEstimator) auditSnapshot(ctx context.Context, targetDate time.Time, rushHours map[int]models.RushHourInfo) {
	rows := make([]models.RushHour, 0, len(rushHours))
	for _, info := range rushHours {
		rows = append(rows, models.RushHour{
			Date:         targetDate,
			Hour:         info.Hour,
			TrafficCount: info.Count,
			RushLevel:    info.Level,
		})
	}
	if err := e.Store.SaveRushHourSnapshot(ctx, rows); err != nil && e.Logger != nil {
		e.Logger.Warn("FORECAST", fmt.Sprintf("failed to save rush hour snapshot: %v", err))
	}
}
