package events

import (
	"errors"
	"net/http"

	"boxoffice/internal/fees"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	CreateEvent(c *gin.Context)
	GetEvent(c *gin.Context)
	UpdateStatus(c *gin.Context)
	GetFeeSettings(c *gin.Context)
	UpdateFeeSettings(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	organizationID, err := uuid.Parse(c.GetString("organization_id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusForbidden, "Organizer is not linked to an organization", nil, nil)
		return
	}

	event, err := ctrl.service.CreateEvent(c.Request.Context(), organizationID, req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Event created successfully", event, nil)
}

func (ctrl *controller) GetEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return
	}

	event, err := ctrl.service.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event retrieved successfully", event, nil)
}

func (ctrl *controller) UpdateStatus(c *gin.Context) {
	event, ok := ctrl.ownedEvent(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	updated, err := ctrl.service.UpdateStatus(c.Request.Context(), event.ID, EventStatus(req.Status))
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event status updated successfully", updated, nil)
}

func (ctrl *controller) GetFeeSettings(c *gin.Context) {
	event, ok := ctrl.ownedEvent(c)
	if !ok {
		return
	}

	settings, err := ctrl.service.GetFeeSettings(c.Request.Context(), event.ID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Fee settings retrieved successfully", settings, nil)
}

func (ctrl *controller) UpdateFeeSettings(c *gin.Context) {
	event, ok := ctrl.ownedEvent(c)
	if !ok {
		return
	}

	var req UpdateFeeSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	settings, err := ctrl.service.UpdateFeeSettings(c.Request.Context(), event.ID, req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Fee settings updated successfully", settings, nil)
}

// ownedEvent loads the :eventId event and checks the caller may manage it.
func (ctrl *controller) ownedEvent(c *gin.Context) (*Event, bool) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return nil, false
	}

	event, err := ctrl.service.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		handleError(c, err)
		return nil, false
	}

	if !middleware.CanAccessOrganization(c, event.OrganizationID) {
		response.RespondJSON(c, "error", http.StatusForbidden, "Access to this event is not allowed", nil, nil)
		return nil, false
	}
	return event, true
}

func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEventNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, err.Error(), nil, nil)
	case errors.Is(err, ErrInvalidStatus):
		response.RespondJSON(c, "error", http.StatusConflict, err.Error(), nil, nil)
	case errors.Is(err, fees.ErrInvalidRate):
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
	default:
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to process event request", nil, err.Error())
	}
}
