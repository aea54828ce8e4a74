package meals_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-canteen/internal/logger"
	"ms-canteen/internal/meals"
	"ms-canteen/internal/models"
	"ms-canteen/internal/utils"
)

// Handler exposes the meal catalog. Student routes live under /api/meals,
// admin routes under /api/admin. The auth gateway in front of this service
// sets X-User-Role; we only enforce that it says admin.
type Handler struct {
	Service *meals.Service
	Logger  *logger.Logger
}

func NewHandler(service *meals.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/meals", func(r chi.Router) {
		r.Get("/", h.ListMeals)
		r.Get("/{mealId}", h.GetMeal)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/meals", h.ListAllMeals)
		r.Post("/meals", h.CreateMeal)
		r.Put("/meals/{mealId}", h.UpdateMeal)
		r.Delete("/meals/{mealId}", h.DeleteMeal)
		r.Get("/dashboard", h.Dashboard)
		r.Get("/popular-meals", h.PopularMeals)
	})
}

func (h *Handler) ListMeals(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	list, err := h.Service.ListAvailable(r.Context(), category)
	if err != nil {
		writeJSON(w, statusForError(err), utils.ErrorResponse("Failed to list meals", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("OK", list))
}

func (h *Handler) ListAllMeals(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	list, err := h.Service.ListAll(r.Context(), category)
	if err != nil {
		writeJSON(w, statusForError(err), utils.ErrorResponse("Failed to list meals", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("OK", list))
}

func (h *Handler) GetMeal(w http.ResponseWriter, r *http.Request) {
	id, ok := mealID(w, r)
	if !ok {
		return
	}

	meal, err := h.Service.GetMeal(r.Context(), id)
	if err != nil {
		writeJSON(w, statusForError(err), utils.ErrorResponse("Meal not found", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("OK", meal))
}

func (h *Handler) CreateMeal(w http.ResponseWriter, r *http.Request) {
	var req models.MealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	meal := req.ToMeal()

	if err := h.Service.CreateMeal(r.Context(), &meal); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateMeal: %v", err))
		writeJSON(w, statusForError(err), utils.ErrorResponse("Could not create meal", err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Meal created", meal))
}

func (h *Handler) UpdateMeal(w http.ResponseWriter, r *http.Request) {
	id, ok := mealID(w, r)
	if !ok {
		return
	}

	var req models.MealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	meal := req.ToMeal()
	meal.ID = id

	if err := h.Service.UpdateMeal(r.Context(), &meal, req.IsAvailable); err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateMeal: %v", err))
		writeJSON(w, statusForError(err), utils.ErrorResponse("Could not update meal", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Meal updated", meal))
}

func (h *Handler) DeleteMeal(w http.ResponseWriter, r *http.Request) {
	id, ok := mealID(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteMeal(r.Context(), id); err != nil {
		h.Logger.Error("API", fmt.Sprintf("DeleteMeal: %v", err))
		writeJSON(w, statusForError(err), utils.ErrorResponse("Could not delete meal", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Meal deleted", nil))
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.GetDashboardStats(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Dashboard: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load dashboard stats", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("OK", stats))
}

func (h *Handler) PopularMeals(w http.ResponseWriter, r *http.Request) {
	popular, err := h.Service.GetPopularMeals(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("PopularMeals: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load popular meals", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("OK", popular))
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Role") != models.RoleAdmin {
			writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Admin access required", ""))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func mealID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "mealId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid meal id", err.Error()))
		return 0, false
	}
	return id, true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, meals.ErrMealNotFound):
		return http.StatusNotFound
	case errors.Is(err, meals.ErrInvalidName),
		errors.Is(err, meals.ErrInvalidCategory),
		errors.Is(err, meals.ErrInvalidPrice),
		errors.Is(err, meals.ErrInvalidStock):
		return http.StatusBadRequest
	case errors.Is(err, meals.ErrMealHasReservations):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
