package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance
func New() *Logger {
	level := getLogLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Text output while developing, JSON everywhere else
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewWithHandler builds a logger on top of an arbitrary slog handler (used by tests).
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{Logger: slog.New(h)}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("request_id", requestID)),
	}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("error", err.Error())),
	}
}

// WithFields adds multiple fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("user_agent", c.Request.UserAgent()),
		slog.Int("size", c.Writer.Size()),
	)
}

// LogHTTPError logs an HTTP error
func (l *Logger) LogHTTPError(c *gin.Context, err error, statusCode int) {
	l.Logger.ErrorContext(c.Request.Context(),
		"HTTP Error",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
		slog.String("ip", c.ClientIP()),
	)
}

// Inventory logging methods

// LogReservationConflict logs a lost optimistic-concurrency race on a category
func (l *Logger) LogReservationConflict(ctx context.Context, categoryID string, attempt int) {
	l.Logger.WarnContext(ctx,
		"Reservation Conflict",
		slog.String("category_id", categoryID),
		slog.Int("attempt", attempt),
	)
}

// LogInventoryReleased logs units returned to a category
func (l *Logger) LogInventoryReleased(ctx context.Context, categoryID string, quantity int) {
	l.Logger.InfoContext(ctx,
		"Inventory Released",
		slog.String("category_id", categoryID),
		slog.Int("quantity", quantity),
	)
}

// Fulfillment logging methods

// LogTicketsIssued logs when tickets are created for a transaction
func (l *Logger) LogTicketsIssued(ctx context.Context, transactionID, eventID string, count int) {
	l.Logger.InfoContext(ctx,
		"Tickets Issued",
		slog.String("transaction_id", transactionID),
		slog.String("event_id", eventID),
		slog.Int("count", count),
	)
}

// LogFulfillmentReplay logs an idempotent short-circuit
func (l *Logger) LogFulfillmentReplay(ctx context.Context, transactionID string, count int) {
	l.Logger.InfoContext(ctx,
		"Fulfillment Replay",
		slog.String("transaction_id", transactionID),
		slog.Int("existing_tickets", count),
	)
}

// LogTicketCancelled logs when a ticket is cancelled
func (l *Logger) LogTicketCancelled(ctx context.Context, ticketID string, released bool) {
	l.Logger.InfoContext(ctx,
		"Ticket Cancelled",
		slog.String("ticket_id", ticketID),
		slog.Bool("inventory_released", released),
	)
}

// Settlement logging methods

// LogWithdrawalRequested logs an accepted withdrawal request
func (l *Logger) LogWithdrawalRequested(ctx context.Context, withdrawalID, organizationID string, amount int64) {
	l.Logger.InfoContext(ctx,
		"Withdrawal Requested",
		slog.String("withdrawal_id", withdrawalID),
		slog.String("organization_id", organizationID),
		slog.Int64("amount", amount),
	)
}

// LogWithdrawalRejected logs a rejected withdrawal request
func (l *Logger) LogWithdrawalRejected(ctx context.Context, organizationID string, amount int64, reason string) {
	l.Logger.WarnContext(ctx,
		"Withdrawal Rejected",
		slog.String("organization_id", organizationID),
		slog.Int64("amount", amount),
		slog.String("reason", reason),
	)
}

// Security logging methods

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// LogWebhookRejected logs a webhook delivery with a bad signature
func (l *Logger) LogWebhookRejected(ctx context.Context, ip, reason string) {
	l.Logger.WarnContext(ctx,
		"Webhook Rejected",
		slog.String("ip", ip),
		slog.String("reason", reason),
	)
}

// Helper methods for common patterns

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.InfoContext(ctx, msg, args...)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2+2)
	args = append(args, slog.String("error", err.Error()))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.ErrorContext(ctx, msg, args...)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
