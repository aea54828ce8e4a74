package reservation_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-canteen/internal/logger"
	"ms-canteen/internal/models"
	"ms-canteen/internal/reservation"
	"ms-canteen/internal/reservation/qr"
	"ms-canteen/internal/utils"
)

// pickupTimeLayout matches the HTML datetime-local format the frontend sends.
const pickupTimeLayout = "2006-01-02T15:04"

// Handler exposes the reservation engine over HTTP. The requesting user is
// taken from the X-User-ID header set by the auth gateway in front of this
// service.
type Handler struct {
	Service        *reservation.Service
	QR             *qr.QRGenerator
	Logger         *logger.Logger
	MinBookingLead time.Duration
}

func NewHandler(service *reservation.Service, qrGen *qr.QRGenerator, log *logger.Logger, minLead time.Duration) *Handler {
	return &Handler{Service: service, QR: qrGen, Logger: log, MinBookingLead: minLead}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/reservation", func(r chi.Router) {
		r.Post("/", h.CreateReservation)
		r.Get("/user/{userId}", h.ListUserReservations)
		r.Get("/{reservationId}/qr", h.PickupQR)
		r.Post("/{reservationId}/complete", h.CompleteReservation)
		r.Delete("/{reservationId}", h.CancelReservation)
	})
}

func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requestUser(w, r)
	if !ok {
		return
	}

	var req models.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateReservation: failed to decode request body: %v", err))
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	pickupTime, err := time.Parse(pickupTimeLayout, req.PickupTime)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateReservation: invalid pickup time %q", req.PickupTime))
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid pickup time", reservation.ErrInvalidPickupTime.Error()))
		return
	}

	// Lead-time policy belongs to the boundary, not the engine.
	if time.Until(pickupTime) < h.MinBookingLead {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse(
			fmt.Sprintf("Pickup must be at least %s from now", h.MinBookingLead),
			reservation.ErrInvalidPickupTime.Error()))
		return
	}

	res, err := h.Service.CreateReservation(r.Context(), userID, req.MealID, pickupTime, req.Quantity)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateReservation: %v", err))
		writeJSON(w, statusForError(err), utils.ErrorResponse("Could not create reservation", err.Error()))
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse(
		fmt.Sprintf("Reservation confirmed! Your pickup token is %s", res.Token),
		res.ToResponse()))
}

func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requestUser(w, r)
	if !ok {
		return
	}

	reservationID := chi.URLParam(r, "reservationId")
	h.Logger.Info("API", fmt.Sprintf("CancelReservation: reservationId=%s", reservationID))

	cancelled, err := h.Service.CancelReservation(r.Context(), reservationID, userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CancelReservation: %v", err))
		writeJSON(w, statusForError(err), utils.ErrorResponse("Could not cancel reservation", err.Error()))
		return
	}
	if !cancelled {
		// Not found, not owned or not pending; the caller gets one generic
		// answer either way.
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("Cannot cancel this reservation", ""))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Reservation cancelled successfully", nil))
}

func (h *Handler) CompleteReservation(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationId")
	h.Logger.Info("API", fmt.Sprintf("CompleteReservation: reservationId=%s", reservationID))

	completed, err := h.Service.CompleteReservation(r.Context(), reservationID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CompleteReservation: %v", err))
		writeJSON(w, statusForError(err), utils.ErrorResponse("Could not complete reservation", err.Error()))
		return
	}
	if !completed {
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("Reservation is not redeemable", ""))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Reservation completed", nil))
}

func (h *Handler) ListUserReservations(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid user id", err.Error()))
		return
	}

	reservations, err := h.Service.GetReservationsByUser(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListUserReservations: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list reservations", err.Error()))
		return
	}

	responses := make([]models.ReservationResponse, 0, len(reservations))
	for _, res := range reservations {
		responses = append(responses, res.ToResponse())
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("OK", responses))
}

func (h *Handler) PickupQR(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationId")

	res, err := h.Service.GetReservation(r.Context(), reservationID)
	if err != nil {
		writeJSON(w, statusForError(err), utils.ErrorResponse("Reservation not found", err.Error()))
		return
	}

	png, err := h.QR.GeneratePickupQR(*res)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("PickupQR: failed to generate QR: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to generate QR code", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("PickupQR: failed to write response: %v", err))
	}
}

func (h *Handler) requestUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Missing or invalid X-User-ID header", ""))
		return 0, false
	}
	return userID, true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, reservation.ErrMealNotFound),
		errors.Is(err, reservation.ErrReservationNotFound):
		return http.StatusNotFound
	case errors.Is(err, reservation.ErrInvalidQuantity),
		errors.Is(err, reservation.ErrInvalidPickupTime):
		return http.StatusBadRequest
	case errors.Is(err, reservation.ErrInsufficientStock),
		errors.Is(err, reservation.ErrReservationLimit),
		errors.Is(err, reservation.ErrMealBusy):
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
