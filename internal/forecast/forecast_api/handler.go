package forecast_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-canteen/internal/forecast"
	"ms-canteen/internal/logger"
	"ms-canteen/internal/utils"
)

const dateLayout = "2006-01-02"

// Handler exposes the forecasting subsystem read-only, plus the admin
// training trigger. Training is a blocking batch operation; cmd/train runs
// the same path off the serving process.
type Handler struct {
	Demand *forecast.DemandModel
	Rush   *forecast.RushEstimator
	Logger *logger.Logger
}

func NewHandler(demand *forecast.DemandModel, rush *forecast.RushEstimator, log *logger.Logger) *Handler {
	return &Handler{Demand: demand, Rush: rush, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/forecast", func(r chi.Router) {
		r.Get("/demand", h.PredictDemand)
		r.Get("/rush-hours", h.PredictRushHours)
		r.Get("/quiet-times", h.QuietTimes)
		r.Post("/train", h.Train)
	})
}

func (h *Handler) PredictDemand(w http.ResponseWriter, r *http.Request) {
	mealID, err := strconv.ParseInt(r.URL.Query().Get("meal_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid meal_id", err.Error()))
		return
	}
	dayOfWeek, err := strconv.Atoi(r.URL.Query().Get("day_of_week"))
	if err != nil || dayOfWeek < 0 || dayOfWeek > 6 {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("day_of_week must be 0 (Monday) through 6 (Sunday)", ""))
		return
	}
	hour, err := strconv.Atoi(r.URL.Query().Get("hour"))
	if err != nil || hour < 0 || hour > 23 {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("hour must be 0 through 23", ""))
		return
	}

	predicted := h.Demand.PredictDemand(r.Context(), mealID, dayOfWeek, hour)

	writeJSON(w, http.StatusOK, utils.SuccessResponse("OK", map[string]interface{}{
		"meal_id":          mealID,
		"day_of_week":      dayOfWeek,
		"hour":             hour,
		"predicted_demand": predicted,
	}))
}

func (h *Handler) PredictRushHours(w http.ResponseWriter, r *http.Request) {
	targetDate, ok := h.targetDate(w, r)
	if !ok {
		return
	}

	rushHours, err := h.Rush.PredictRushHours(r.Context(), targetDate)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("PredictRushHours: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to predict rush hours", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("OK", rushHours))
}

func (h *Handler) QuietTimes(w http.ResponseWriter, r *http.Request) {
	targetDate, ok := h.targetDate(w, r)
	if !ok {
		return
	}

	quiet, err := h.Rush.QuietTimeSuggestions(r.Context(), targetDate)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("QuietTimes: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to compute quiet times", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("OK", quiet))
}

func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "Train: model training requested")

	trained, err := h.Demand.Train(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Train: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Training failed", err.Error()))
		return
	}
	if !trained {
		writeJSON(w, http.StatusOK, utils.ErrorResponse("Insufficient data to train model", ""))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Model trained successfully", nil))
}

func (h *Handler) targetDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		// Pickup history is stored UTC; the default must bucket in the
		// same zone or the weekday can be off near midnight.
		return time.Now().UTC(), true
	}
	targetDate, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid date, expected YYYY-MM-DD", err.Error()))
		return time.Time{}, false
	}
	return targetDate, true
}

func writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
