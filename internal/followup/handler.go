package followup

import (
	"net/http"

	"dealroom_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StartTimerRequest is the body for starting a follow-up timer.
type StartTimerRequest struct {
	ViewerIdentity string `json:"viewer_identity" binding:"required"`
}

// StopTimerRequest is the body for stopping a follow-up timer.
type StopTimerRequest struct {
	ViewerIdentity string `json:"viewer_identity" binding:"required"`
	Reason         string `json:"reason" binding:"required"`
}

// Handler exposes the follow-up timer HTTP endpoints.
type Handler struct {
	service  *Service
	bookings BookingChecker
}

// NewHandler creates a new follow-up handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// SetBookingChecker wires the booking service after construction.
func (h *Handler) SetBookingChecker(bc BookingChecker) {
	h.bookings = bc
}

// HandleStartTimer schedules or re-triggers the follow-up timer for a viewer.
func (h *Handler) HandleStartTimer(c *gin.Context) {
	leadID, documentID, ok := parseKeyParams(c)
	if !ok {
		return
	}

	var req StartTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Fail(c, http.StatusBadRequest, "viewer_identity is required")
		return
	}

	result, err := h.service.StartTimer(c.Request.Context(), leadID, documentID, req.ViewerIdentity)
	if httpkit.HandleEnvelopeError(c, err) {
		return
	}

	httpkit.Success(c, "follow-up scheduled", gin.H{
		"followup_id":   result.TaskID,
		"scheduled_for": result.ScheduledFor,
		"delay_minutes": result.DelayMinutes,
		"action":        result.Action,
	})
}

// HandleStopTimer cancels the scheduled timer for a viewer.
func (h *Handler) HandleStopTimer(c *gin.Context) {
	leadID, documentID, ok := parseKeyParams(c)
	if !ok {
		return
	}

	var req StopTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Fail(c, http.StatusBadRequest, "viewer_identity and reason are required")
		return
	}

	cancelled, err := h.service.StopTimer(c.Request.Context(), leadID, documentID, req.ViewerIdentity, req.Reason)
	if httpkit.HandleEnvelopeError(c, err) {
		return
	}

	httpkit.Success(c, "follow-up stopped", gin.H{
		"cancelled_count": cancelled,
	})
}

// HandleBookingCheck runs the recent-booking check for a lead.
func (h *Handler) HandleBookingCheck(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Fail(c, http.StatusBadRequest, "invalid lead id")
		return
	}

	check, err := h.bookings.CheckRecentBooking(c.Request.Context(), leadID)
	if httpkit.HandleEnvelopeError(c, err) {
		return
	}

	httpkit.Success(c, "booking check completed", gin.H{
		"has_recent_booking": check.HasRecentBooking,
		"cancelled_count":    check.CancelledCount,
	})
}

func parseKeyParams(c *gin.Context) (leadID, documentID uuid.UUID, ok bool) {
	leadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Fail(c, http.StatusBadRequest, "invalid lead id")
		return uuid.Nil, uuid.Nil, false
	}
	documentID, err = uuid.Parse(c.Param("documentId"))
	if err != nil {
		httpkit.Fail(c, http.StatusBadRequest, "invalid document id")
		return uuid.Nil, uuid.Nil, false
	}
	return leadID, documentID, true
}
