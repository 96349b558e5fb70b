package settlement

import (
	"errors"
	"net/http"

	"boxoffice/internal/events"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	CreateOrganization(c *gin.Context)
	GetOrganization(c *gin.Context)
	UpdatePixKeys(c *gin.Context)
	GetBalance(c *gin.Context)
	RequestWithdrawal(c *gin.Context)
	ListWithdrawals(c *gin.Context)
	UpdateWithdrawalStatus(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) CreateOrganization(c *gin.Context) {
	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	organization, err := ctrl.service.CreateOrganization(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Organization created successfully", organization, nil)
}

// The :organizationId param is validated by middleware.RequireOrganizationAccess
func organizationID(c *gin.Context) uuid.UUID {
	return uuid.MustParse(c.Param("organizationId"))
}

func (ctrl *controller) GetOrganization(c *gin.Context) {
	organization, err := ctrl.service.GetOrganization(c.Request.Context(), organizationID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Organization retrieved successfully", organization, nil)
}

func (ctrl *controller) UpdatePixKeys(c *gin.Context) {
	var req UpdatePixKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	organization, err := ctrl.service.UpdatePixKeys(c.Request.Context(), organizationID(c), req.PixKeys)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "PIX keys updated successfully", organization, nil)
}

func (ctrl *controller) GetBalance(c *gin.Context) {
	scope := Scope{OrganizationID: organizationID(c)}
	if raw := c.Query("eventId"); raw != "" {
		eventID, err := uuid.Parse(raw)
		if err != nil {
			response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
			return
		}
		scope.EventID = &eventID
	}

	balance, err := ctrl.service.CachedBalance(c.Request.Context(), scope)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Balance retrieved successfully", balance, nil)
}

func (ctrl *controller) RequestWithdrawal(c *gin.Context) {
	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	withdrawal, err := ctrl.service.RequestWithdrawal(c.Request.Context(), WithdrawalRequest{
		OrganizationID: organizationID(c),
		EventID:        req.EventID,
		Amount:         req.Amount,
		PixKeyIndex:    req.PixKeyIndex,
		RequestedBy:    middleware.UserID(c),
	})
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Withdrawal requested successfully", withdrawal, nil)
}

func (ctrl *controller) ListWithdrawals(c *gin.Context) {
	withdrawals, err := ctrl.service.ListWithdrawals(c.Request.Context(), organizationID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Withdrawals retrieved successfully", withdrawals, nil)
}

func (ctrl *controller) UpdateWithdrawalStatus(c *gin.Context) {
	withdrawalID, err := uuid.Parse(c.Param("withdrawalId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid withdrawal ID", nil, err.Error())
		return
	}

	var req UpdateWithdrawalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	withdrawal, err := ctrl.service.UpdateWithdrawalStatus(c.Request.Context(), withdrawalID, req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Withdrawal updated successfully", withdrawal, nil)
}

func handleError(c *gin.Context, err error) {
	var insufficient *InsufficientBalanceError
	var below *BelowMinimumError

	switch {
	case errors.As(err, &insufficient):
		response.RespondJSON(c, "error", http.StatusUnprocessableEntity, err.Error(), nil, gin.H{
			"requested":   insufficient.Requested,
			"requestable": insufficient.Requestable,
			"balance":     insufficient.Balance,
		})
	case errors.As(err, &below):
		response.RespondJSON(c, "error", http.StatusUnprocessableEntity, err.Error(), nil, gin.H{
			"minimum": below.Minimum,
		})
	case errors.Is(err, ErrInvalidPixKey):
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
	case errors.Is(err, ErrOrganizationNotFound),
		errors.Is(err, ErrWithdrawalNotFound),
		errors.Is(err, events.ErrEventNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, err.Error(), nil, nil)
	case errors.Is(err, ErrEventNotInOrganization):
		response.RespondJSON(c, "error", http.StatusForbidden, err.Error(), nil, nil)
	case errors.Is(err, ErrInvalidTransition):
		response.RespondJSON(c, "error", http.StatusConflict, err.Error(), nil, nil)
	default:
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to process settlement request", nil, err.Error())
	}
}
