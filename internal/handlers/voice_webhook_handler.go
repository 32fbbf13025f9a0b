package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/wakemetravel/wakeme-backend/internal/services"
)

// VoiceWebhookHandler receives call lifecycle events from the voice
// vendor. The vendor posts two shapes for the same event depending on
// account configuration: a flat payload and one nested under "message",
// so both are normalized here before the orchestrator sees them.
type VoiceWebhookHandler struct {
	orchestrator *services.CallOrchestratorService
	logger       *logrus.Logger
}

// NewVoiceWebhookHandler creates a new VoiceWebhookHandler
func NewVoiceWebhookHandler(orchestrator *services.CallOrchestratorService, logger *logrus.Logger) *VoiceWebhookHandler {
	return &VoiceWebhookHandler{orchestrator: orchestrator, logger: logger}
}

type voiceCallMetadata struct {
	TripID         string `json:"trip_id"`
	Attempt        int    `json:"attempt"`
	UserTelegramID int64  `json:"user_telegram_id"`
}

type voiceCallInfo struct {
	ID       string            `json:"id"`
	Metadata voiceCallMetadata `json:"metadata"`
}

type voiceEvent struct {
	Type            string        `json:"type"`
	Status          string        `json:"status"`
	EndedReason     string        `json:"endedReason"`
	Transcript      string        `json:"transcript"`
	DurationSeconds float64       `json:"durationSeconds"`
	Call            voiceCallInfo `json:"call"`
}

type voiceWebhookPayload struct {
	voiceEvent
	Message *voiceEvent `json:"message"`
}

// event returns the nested message when present, else the flat body
func (p *voiceWebhookPayload) event() *voiceEvent {
	if p.Message != nil && p.Message.Type != "" {
		return p.Message
	}
	return &p.voiceEvent
}

// HandleEvent processes a voice vendor webhook
// POST /webhooks/voice
func (h *VoiceWebhookHandler) HandleEvent(c *gin.Context) {
	var payload voiceWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_payload",
			"message": err.Error(),
		})
		return
	}

	event := payload.event()

	h.logger.WithFields(logrus.Fields{
		"event_type": event.Type,
		"call_id":    event.Call.ID,
		"trip_id":    event.Call.Metadata.TripID,
	}).Info("Voice webhook received")

	switch event.Type {
	case "end-of-call-report":
		h.handleEndOfCall(c, event)
	case "status-update":
		// Intermediate transitions (ringing, in-progress) are logged
		// but carry no outcome to act on.
		c.JSON(http.StatusOK, gin.H{"received": true})
	default:
		c.JSON(http.StatusOK, gin.H{"received": true, "ignored": true})
	}
}

func (h *VoiceWebhookHandler) handleEndOfCall(c *gin.Context, event *voiceEvent) {
	if event.Call.ID == "" || event.Call.Metadata.TripID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_payload",
			"message": "end-of-call-report missing call id or trip metadata",
		})
		return
	}

	result := services.CallResult{
		CallID:          event.Call.ID,
		Status:          normalizeEndStatus(event.EndedReason, event.Status),
		Transcript:      event.Transcript,
		DurationSeconds: int(event.DurationSeconds),
		TripID:          event.Call.Metadata.TripID,
		Attempt:         event.Call.Metadata.Attempt,
		UserTelegramID:  event.Call.Metadata.UserTelegramID,
	}

	if err := h.orchestrator.HandleCallResult(result); err != nil {
		h.logger.WithError(err).WithField("call_id", result.CallID).Error("Failed to process call result")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "processing_failed",
			"message": "Failed to process call result",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// normalizeEndStatus folds the vendor's many endedReason strings into
// the two outcomes the orchestrator distinguishes
func normalizeEndStatus(endedReason, status string) string {
	reason := strings.ToLower(endedReason)
	switch {
	case strings.Contains(reason, "error"),
		strings.Contains(reason, "failed"),
		strings.Contains(reason, "no-answer"),
		strings.Contains(reason, "busy"):
		return "failed"
	case reason != "" || status == "ended":
		return "ended"
	default:
		return "ended"
	}
}
