package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wakemetravel/wakeme-backend/internal/services"
)

// TripHandler exposes the trip lifecycle over HTTP. This is the thin
// adapter the chat bot talks to; all decisions live in the services.
type TripHandler struct {
	tripService *services.TripService
}

// NewTripHandler creates a new TripHandler
func NewTripHandler(tripService *services.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// StartBusTripRequest represents the request body for creating a bus trip
type StartBusTripRequest struct {
	TelegramID int64   `json:"telegram_id" binding:"required"`
	Name       string  `json:"name" binding:"required"`
	Username   *string `json:"username,omitempty"`
}

// StartBusTrip creates a bus trip for a user
// POST /api/v1/trips/bus
func (h *TripHandler) StartBusTrip(c *gin.Context) {
	var req StartBusTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	trip, err := h.tripService.StartBusTrip(req.TelegramID, req.Name, req.Username)
	if err != nil {
		respondTripError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"trip":    trip,
		"message": "Share your live location to start tracking",
	})
}

// StartTrainTripRequest represents the request body for creating a train trip
type StartTrainTripRequest struct {
	TelegramID int64   `json:"telegram_id" binding:"required"`
	Name       string  `json:"name" binding:"required"`
	Username   *string `json:"username,omitempty"`
	PNR        string  `json:"pnr" binding:"required,len=10"`
}

// StartTrainTrip creates a train trip from a PNR lookup
// POST /api/v1/trips/train
func (h *TripHandler) StartTrainTrip(c *gin.Context) {
	var req StartTrainTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	trip, ticket, err := h.tripService.StartTrainTrip(req.TelegramID, req.Name, req.Username, req.PNR)
	if err != nil {
		respondTripError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"trip":    trip,
		"ticket":  ticket,
		"message": "Confirm the parsed ticket to start tracking",
	})
}

// UpdateLocationRequest represents a live location share
type UpdateLocationRequest struct {
	TelegramID int64   `json:"telegram_id" binding:"required"`
	Latitude   float64 `json:"latitude" binding:"required"`
	Longitude  float64 `json:"longitude" binding:"required"`
}

// UpdateLocation records a fresh bus position
// POST /api/v1/trips/location
func (h *TripHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	trip, err := h.tripService.CaptureBusLocation(req.TelegramID, req.Latitude, req.Longitude)
	if err != nil {
		respondTripError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trip": trip})
}

// SetDestinationRequest represents the destination capture body
type SetDestinationRequest struct {
	TelegramID  int64  `json:"telegram_id" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

// SetDestination captures and geocodes the bus destination
// POST /api/v1/trips/destination
func (h *TripHandler) SetDestination(c *gin.Context) {
	var req SetDestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	trip, err := h.tripService.SetBusDestination(req.TelegramID, req.Destination)
	if err != nil {
		respondTripError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trip": trip})
}

// ConfirmTrainRequest represents the train ticket confirmation body
type ConfirmTrainRequest struct {
	TelegramID int64 `json:"telegram_id" binding:"required"`
}

// ConfirmTrain accepts a parsed train ticket
// POST /api/v1/trips/train/confirm
func (h *TripHandler) ConfirmTrain(c *gin.Context) {
	var req ConfirmTrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	trip, err := h.tripService.ConfirmTrainTrip(req.TelegramID)
	if err != nil {
		respondTripError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trip": trip})
}

// CapturePhoneRequest represents the phone capture body
type CapturePhoneRequest struct {
	TelegramID int64  `json:"telegram_id" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
}

// CapturePhone stores the user's phone number and activates a trip
// waiting on it
// POST /api/v1/users/phone
func (h *TripHandler) CapturePhone(c *gin.Context) {
	var req CapturePhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	trip, err := h.tripService.CapturePhone(req.TelegramID, req.Phone)
	if err != nil {
		respondTripError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trip": trip})
}

// TripStatus returns the user's current trip
// GET /api/v1/trips/status/:telegram_id
func (h *TripHandler) TripStatus(c *gin.Context) {
	telegramID, ok := parseTelegramID(c)
	if !ok {
		return
	}

	trip, err := h.tripService.ActiveTrip(telegramID)
	if err != nil {
		respondTripError(c, err)
		return
	}

	if trip == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "no_active_trip",
			"message": "No trip is being tracked",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trip": trip})
}

// CancelTrip cancels the user's active trip
// POST /api/v1/trips/cancel/:telegram_id
func (h *TripHandler) CancelTrip(c *gin.Context) {
	telegramID, ok := parseTelegramID(c)
	if !ok {
		return
	}

	cancelled, err := h.tripService.Cancel(telegramID)
	if err != nil {
		respondTripError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

// MarkAwake completes the trip via the explicit "I'm awake" action
// POST /api/v1/trips/awake/:telegram_id
func (h *TripHandler) MarkAwake(c *gin.Context) {
	telegramID, ok := parseTelegramID(c)
	if !ok {
		return
	}

	completed, err := h.tripService.MarkAwake(telegramID)
	if err != nil {
		respondTripError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"completed": completed})
}

// respondTripError maps service errors onto actionable HTTP responses
func respondTripError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTripInProgress):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "trip_in_progress",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrNoActiveTrip):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "no_active_trip",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrWrongState):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "wrong_state",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "ticket_not_found",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrDestinationNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "destination_not_found",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}

func parseTelegramID(c *gin.Context) (int64, bool) {
	var uri struct {
		TelegramID int64 `uri:"telegram_id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "telegram_id must be a number",
		})
		return 0, false
	}
	return uri.TelegramID, true
}
