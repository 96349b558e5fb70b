package inventory

import (
	"context"
	"errors"
	"net/http"

	"boxoffice/internal/events"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	CreateCategory(c *gin.Context)
	ListCategories(c *gin.Context)
	GetCategory(c *gin.Context)
	AddBatch(c *gin.Context)
}

type EventLookup interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*events.Event, error)
}

type controller struct {
	service Service
	events  EventLookup
}

func NewController(service Service, eventLookup EventLookup) Controller {
	return &controller{service: service, events: eventLookup}
}

func (ctrl *controller) CreateCategory(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return
	}

	if !ctrl.canManageEvent(c, eventID) {
		return
	}

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	category, err := ctrl.service.CreateCategory(c.Request.Context(), eventID, req)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Ticket category created successfully", category.ToResponse(), nil)
}

func (ctrl *controller) ListCategories(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return
	}

	categories, err := ctrl.service.ListCategories(c.Request.Context(), eventID)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	result := make([]CategoryResponse, 0, len(categories))
	for i := range categories {
		result = append(result, categories[i].ToResponse())
	}
	response.RespondJSON(c, "success", http.StatusOK, "Ticket categories retrieved successfully", result, nil)
}

func (ctrl *controller) GetCategory(c *gin.Context) {
	categoryID, err := uuid.Parse(c.Param("categoryId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid category ID", nil, err.Error())
		return
	}

	category, err := ctrl.service.GetCategory(c.Request.Context(), categoryID)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Ticket category retrieved successfully", category.ToResponse(), nil)
}

func (ctrl *controller) AddBatch(c *gin.Context) {
	categoryID, err := uuid.Parse(c.Param("categoryId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid category ID", nil, err.Error())
		return
	}

	category, err := ctrl.service.GetCategory(c.Request.Context(), categoryID)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}
	if !ctrl.canManageEvent(c, category.EventID) {
		return
	}

	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	batch, err := ctrl.service.AddBatch(c.Request.Context(), categoryID, req)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Pricing batch created successfully", batch.ToResponse(), nil)
}

func (ctrl *controller) canManageEvent(c *gin.Context, eventID uuid.UUID) bool {
	event, err := ctrl.events.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		ctrl.handleError(c, err)
		return false
	}
	if !middleware.CanAccessOrganization(c, event.OrganizationID) {
		response.RespondJSON(c, "error", http.StatusForbidden, "Access to this event is not allowed", nil, nil)
		return false
	}
	return true
}

func (ctrl *controller) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrCategoryNotFound), errors.Is(err, events.ErrEventNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, err.Error(), nil, nil)
	case errors.Is(err, ErrDuplicateBatchNumber), errors.Is(err, ErrCourtesyExists):
		response.RespondJSON(c, "error", http.StatusConflict, err.Error(), nil, nil)
	case errors.Is(err, ErrInvalidBatch), errors.Is(err, ErrInvalidQuantity):
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
	default:
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to process inventory request", nil, err.Error())
	}
}
