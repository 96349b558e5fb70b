package analytics

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"boxoffice/internal/events"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/response"
)

// Controller defines the analytics controller interface
type Controller interface {
	GetEventReport(c *gin.Context)
}

type controller struct {
	service Service
	events  EventLookup
}

// NewController creates a new analytics controller instance
func NewController(service Service, eventLookup EventLookup) Controller {
	return &controller{service: service, events: eventLookup}
}

func (ctrl *controller) GetEventReport(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return
	}

	event, err := ctrl.events.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		handleError(c, err)
		return
	}
	if !middleware.CanAccessOrganization(c, event.OrganizationID) {
		response.RespondJSON(c, "error", http.StatusForbidden, "Access to this event is not allowed", nil, nil)
		return
	}

	report, err := ctrl.service.CachedEventReport(c.Request.Context(), eventID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event report retrieved successfully", report, nil)
}

func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, events.ErrEventNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, err.Error(), nil, nil)
	default:
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to build event report", nil, err.Error())
	}
}
