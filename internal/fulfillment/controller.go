package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"boxoffice/internal/events"
	"boxoffice/internal/inventory"
	"boxoffice/internal/payments"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/response"
	"boxoffice/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxWebhookBody = 1 << 20

// EventLookup resolves the organization that owns an event.
type EventLookup interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*events.Event, error)
}

type Controller interface {
	Webhook(c *gin.Context)
	Fulfill(c *gin.Context)
	GetTransactionTickets(c *gin.Context)
	IssueCourtesy(c *gin.Context)
	CancelTicket(c *gin.Context)
}

type controller struct {
	service         Service
	events          EventLookup
	verifier        *WebhookVerifier
	signatureHeader string
	log             *logger.Logger
}

func NewController(service Service, eventLookup EventLookup, verifier *WebhookVerifier, signatureHeader string, log *logger.Logger) Controller {
	return &controller{
		service:         service,
		events:          eventLookup,
		verifier:        verifier,
		signatureHeader: signatureHeader,
		log:             log,
	}
}

func (ctrl *controller) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Failed to read request body", nil, err.Error())
		return
	}

	if err := ctrl.verifier.Verify(body, c.GetHeader(ctrl.signatureHeader)); err != nil {
		ctrl.log.LogWebhookRejected(c.Request.Context(), c.ClientIP(), err.Error())
		response.RespondJSON(c, "error", http.StatusUnauthorized, err.Error(), nil, nil)
		return
	}

	var confirmation payments.Confirmation
	if err := json.Unmarshal(body, &confirmation); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	result, err := ctrl.service.HandleConfirmation(c.Request.Context(), confirmation)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Payment confirmation processed", result, nil)
}

func (ctrl *controller) Fulfill(c *gin.Context) {
	transactionID := c.Param("transactionId")

	ids, err := ctrl.service.Fulfill(c.Request.Context(), transactionID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Transaction fulfilled", FulfillResponse{
		TransactionID: transactionID,
		TicketIDs:     ids,
		Count:         len(ids),
	}, nil)
}

func (ctrl *controller) GetTransactionTickets(c *gin.Context) {
	tickets, err := ctrl.service.TicketsForTransaction(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		handleError(c, err)
		return
	}

	// Buyers only see their own purchases
	role := c.GetString("user_role")
	if role == middleware.RoleBuyer {
		for _, t := range tickets {
			if t.UserID != middleware.UserID(c) {
				response.RespondJSON(c, "error", http.StatusForbidden, "Access to this transaction is not allowed", nil, nil)
				return
			}
		}
	}

	response.RespondJSON(c, "success", http.StatusOK, "Tickets retrieved successfully", toTicketResponses(tickets), nil)
}

func (ctrl *controller) IssueCourtesy(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return
	}

	var req CourtesyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if !ctrl.canManageEvent(c, eventID) {
		return
	}

	tickets, err := ctrl.service.IssueCourtesy(c.Request.Context(), eventID, req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Courtesy tickets issued successfully", toTicketResponses(tickets), nil)
}

func (ctrl *controller) CancelTicket(c *gin.Context) {
	ticketID, err := uuid.Parse(c.Param("ticketId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid ticket ID", nil, err.Error())
		return
	}

	// Ownership is checked against the ticket's event before anything changes
	current, err := ctrl.service.GetTicket(c.Request.Context(), ticketID)
	if err != nil {
		handleError(c, err)
		return
	}
	if !ctrl.canManageEvent(c, current.EventID) {
		return
	}

	ticket, err := ctrl.service.CancelTicket(c.Request.Context(), ticketID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Ticket cancelled successfully", toTicketResponse(*ticket), nil)
}

func (ctrl *controller) canManageEvent(c *gin.Context, eventID uuid.UUID) bool {
	event, err := ctrl.events.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		handleError(c, err)
		return false
	}
	if !middleware.CanAccessOrganization(c, event.OrganizationID) {
		response.RespondJSON(c, "error", http.StatusForbidden, "Access to this event is not allowed", nil, nil)
		return false
	}
	return true
}

func handleError(c *gin.Context, err error) {
	var insufficient *inventory.InsufficientInventoryError
	var malformed *payments.MalformedSelectionsError

	switch {
	case errors.As(err, &insufficient):
		response.RespondJSON(c, "error", http.StatusConflict, err.Error(), nil, gin.H{
			"category_id":   insufficient.CategoryID,
			"category_name": insufficient.CategoryName,
			"requested":     insufficient.Requested,
			"available":     insufficient.Available,
			"shortfall":     insufficient.Shortfall(),
		})
	case errors.As(err, &malformed):
		response.RespondJSON(c, "error", http.StatusUnprocessableEntity, err.Error(), nil, gin.H{
			"reason": malformed.Reason,
		})
	case errors.Is(err, payments.ErrTransactionNotFound),
		errors.Is(err, events.ErrEventNotFound),
		errors.Is(err, inventory.ErrCategoryNotFound),
		errors.Is(err, inventory.ErrTicketNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, err.Error(), nil, nil)
	case errors.Is(err, events.ErrEventCancelled),
		errors.Is(err, ErrTransactionNotPaid),
		errors.Is(err, ErrTicketNotCancellable),
		errors.Is(err, payments.ErrConfirmationClash),
		errors.Is(err, inventory.ErrCategoryInactive):
		response.RespondJSON(c, "error", http.StatusConflict, err.Error(), nil, nil)
	case errors.Is(err, payments.ErrConfirmationInvalid),
		errors.Is(err, ErrCategoryNotInEvent),
		errors.Is(err, inventory.ErrInvalidQuantity):
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
	default:
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to process ticket request", nil, err.Error())
	}
}
