package errors

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ErrorInfo carries a mapped code and a safe user-facing message.
type ErrorInfo struct {
	Code    string
	Message string
}

// ParseError maps storage-layer errors to codes without leaking
// internals. Business errors are matched by their sentinel messages.
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{Code: InternalServerError, Message: "Something went wrong"}
	}

	errStr := err.Error()
	errStrLower := strings.ToLower(errStr)

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{Code: ResourceNotFound, Message: notFoundMessage(context)}
	}

	// PostgreSQL constraint violations
	if strings.Contains(errStrLower, "duplicate key") || strings.Contains(errStrLower, "unique constraint") {
		return parseDuplicateKeyError(errStrLower, context)
	}
	if strings.Contains(errStrLower, "foreign key constraint") {
		return ErrorInfo{Code: ResourceConflict, Message: "A related record is missing or still referenced"}
	}
	if strings.Contains(errStrLower, "violates not-null constraint") {
		return ErrorInfo{Code: ValidationRequired, Message: "A required field is missing"}
	}
	if strings.Contains(errStrLower, "check constraint") {
		return ErrorInfo{Code: ValidationInvalidInput, Message: "A field value is out of range"}
	}

	// Connectivity
	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "timeout") {
		return ErrorInfo{
			Code:    InternalDatabaseError,
			Message: "The service is temporarily unavailable. Please try again shortly",
		}
	}

	return ErrorInfo{Code: InternalServerError, Message: defaultMessage(context)}
}

// ParseAndRespond maps err and writes the standard error payload.
func ParseAndRespond(c *gin.Context, statusCode int, err error, context string) {
	info := ParseError(err, context)
	RespondWithError(c, statusCode, info.Code, info.Message)
}

func parseDuplicateKeyError(errStrLower, context string) ErrorInfo {
	switch {
	case strings.Contains(errStrLower, "idx_points_order_action"):
		return ErrorInfo{Code: LoyaltyDuplicateEntry, Message: "This order already has a ledger entry for that action"}
	case strings.Contains(errStrLower, "idx_review_order_product"):
		return ErrorInfo{Code: ReviewAlreadyExists, Message: "You have already reviewed this item for this order"}
	case strings.Contains(errStrLower, "idx_order_status_once"):
		return ErrorInfo{Code: ResourceAlreadyExists, Message: "This status was already recorded for the order"}
	case context != "":
		return ErrorInfo{Code: ResourceAlreadyExists, Message: "This " + context + " already exists"}
	default:
		return ErrorInfo{Code: ResourceAlreadyExists, Message: "This record already exists"}
	}
}

func notFoundMessage(context string) string {
	switch context {
	case "order":
		return "Order not found"
	case "review":
		return "Review not found"
	case "notification":
		return "Notification not found"
	case "product":
		return "Product not found"
	default:
		return "Requested record not found"
	}
}

func defaultMessage(context string) string {
	if context == "" {
		return "Something went wrong. Please try again shortly"
	}
	return "Failed to process " + context + ". Please try again shortly"
}
