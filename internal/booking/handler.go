package booking

import (
	"net/http"

	"dealroom_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// webhookResponse is the provider-facing response shape.
type webhookResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Handler exposes the booking webhook HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a new booking handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleWebhook processes an inbound booking-provider webhook.
// Providers retry on non-2xx, so every expected failure maps to 400 with a
// message; unexpected failures are masked.
func (h *Handler) HandleWebhook(c *gin.Context) {
	var payload WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, webhookResponse{
			Status:  "error",
			Message: "invalid JSON payload",
		})
		return
	}

	result, err := h.service.ProcessWebhook(c.Request.Context(), payload)
	if err != nil {
		message := "webhook processing failed"
		if domainErr, ok := err.(*apperr.Error); ok && domainErr.Kind != apperr.KindInternal {
			message = domainErr.Message
		}
		c.JSON(http.StatusBadRequest, webhookResponse{
			Status:  "error",
			Message: message,
		})
		return
	}

	c.JSON(http.StatusOK, webhookResponse{
		Status:  "success",
		Message: "webhook processed",
		Data:    result,
	})
}

// HandleHealth is the provider-facing liveness probe.
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
