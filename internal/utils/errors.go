package utils

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is a business error carrying the HTTP status it maps to.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Errors     []FieldError
	cause      error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.cause }

// Is matches any AppError with the same code, so copies made by WithMessage
// still satisfy errors.Is against the sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy with a more specific message.
func (e *AppError) WithMessage(format string, args ...any) *AppError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy that records cause for logging.
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.cause = cause
	return &cp
}

func newAppError(status int, code, message string) *AppError {
	return &AppError{StatusCode: status, Code: code, Message: message}
}

func BadRequest(message string) *AppError {
	return newAppError(http.StatusBadRequest, "BAD_REQUEST", message)
}

func Validation(fields []FieldError) *AppError {
	e := newAppError(http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed")
	e.Errors = fields
	return e
}

func Unauthorized(message string) *AppError {
	return newAppError(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(message string) *AppError {
	return newAppError(http.StatusForbidden, "FORBIDDEN", message)
}

func NotFound(message string) *AppError {
	return newAppError(http.StatusNotFound, "NOT_FOUND", message)
}

func Conflict(message string) *AppError {
	return newAppError(http.StatusConflict, "CONFLICT", message)
}

func Unprocessable(message string) *AppError {
	return newAppError(http.StatusUnprocessableEntity, "UNPROCESSABLE", message)
}

func TooManyRequests(message string) *AppError {
	return newAppError(http.StatusTooManyRequests, "TOO_MANY_REQUESTS", message)
}

func BadGateway(message string) *AppError {
	return newAppError(http.StatusBadGateway, "BAD_GATEWAY", message)
}

func Internal(cause error) *AppError {
	e := newAppError(http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	e.cause = cause
	return e
}

// Common application errors used across services.
var (
	ErrInvalidToken        = newAppError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
	ErrInvalidCredentials  = newAppError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	ErrAccountInactive     = newAppError(http.StatusForbidden, "ACCOUNT_INACTIVE", "Account is inactive")
	ErrEmailExists         = newAppError(http.StatusConflict, "EMAIL_EXISTS", "Email is already registered")
	ErrProductNotFound     = newAppError(http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
	ErrVariantNotFound     = newAppError(http.StatusNotFound, "VARIANT_NOT_FOUND", "Variant not found")
	ErrCategoryNotFound    = newAppError(http.StatusNotFound, "CATEGORY_NOT_FOUND", "Category not found")
	ErrOrderNotFound       = newAppError(http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
	ErrReviewNotFound      = newAppError(http.StatusNotFound, "REVIEW_NOT_FOUND", "Review not found")
	ErrNotificationMissing = newAppError(http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "Notification not found")
	ErrSlugExists          = newAppError(http.StatusConflict, "SLUG_EXISTS", "Slug already exists")
	ErrSKUExists           = newAppError(http.StatusConflict, "SKU_EXISTS", "SKU already exists")
	ErrCategoryInUse       = newAppError(http.StatusConflict, "CATEGORY_IN_USE", "Category has products or subcategories")
	ErrProductUnavailable  = newAppError(http.StatusUnprocessableEntity, "PRODUCT_UNAVAILABLE", "Product is not available for purchase")
	ErrVariantUnavailable  = newAppError(http.StatusUnprocessableEntity, "VARIANT_UNAVAILABLE", "Variant is not available for purchase")
	ErrInsufficientStock   = newAppError(http.StatusConflict, "INSUFFICIENT_STOCK", "Insufficient stock")
	ErrQuantityOutOfRange  = newAppError(http.StatusBadRequest, "INVALID_QUANTITY", "Quantity is outside the allowed range")
	ErrPaymentMethod       = newAppError(http.StatusBadRequest, "PAYMENT_METHOD_DISABLED", "Payment method is not enabled")
	ErrReferenceInUse      = newAppError(http.StatusConflict, "REFERENCE_IN_USE", "Payment reference already in use")
	ErrGatewayUnavailable  = newAppError(http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR", "Payment gateway initialization failed")
	ErrInvalidTransition   = newAppError(http.StatusUnprocessableEntity, "INVALID_STATUS_TRANSITION", "Order status transition is not allowed")
	ErrReviewExists        = newAppError(http.StatusConflict, "REVIEW_EXISTS", "You have already reviewed this product")
	ErrAlreadyVoted        = newAppError(http.StatusConflict, "ALREADY_VOTED", "You have already voted on this review")
	ErrNotVoted            = newAppError(http.StatusConflict, "NOT_VOTED", "You have not voted on this review")
	ErrOwnReviewVote       = newAppError(http.StatusForbidden, "OWN_REVIEW", "You cannot vote on your own review")
	ErrWishlistItemExists  = newAppError(http.StatusConflict, "WISHLIST_ITEM_EXISTS", "Product already in wishlist")
	ErrWishlistItemMissing = newAppError(http.StatusNotFound, "WISHLIST_ITEM_NOT_FOUND", "Product not in wishlist")
)

var exposeErrorDetail bool

// SetExposeErrorDetail controls whether internal error detail reaches clients.
func SetExposeErrorDetail(v bool) {
	exposeErrorDetail = v
}

// AsAppError maps any error onto the API taxonomy.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return Validation(FieldErrors(verrs))
	}
	if errors.Is(err, io.EOF) {
		return BadRequest("Request body is required")
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return BadRequest("Malformed JSON body").Wrap(err)
	}
	return FromStorage(err)
}

// FromStorage translates database errors so raw engine errors never leak.
func FromStorage(err error) *AppError {
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("Resource not found").Wrap(err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return Conflict(duplicateMessage(pqErr.Constraint)).Wrap(err)
		case "23503":
			return BadRequest("Referenced resource does not exist").Wrap(err)
		case "22P02", "23514", "23502":
			return BadRequest("Invalid value").Wrap(err)
		}
	}
	return Internal(err)
}

func duplicateMessage(constraint string) string {
	switch {
	case strings.Contains(constraint, "email"):
		return ErrEmailExists.Message
	case strings.Contains(constraint, "slug"):
		return ErrSlugExists.Message
	case strings.Contains(constraint, "sku"):
		return ErrSKUExists.Message
	case strings.Contains(constraint, "reviews_product_customer"):
		return ErrReviewExists.Message
	case strings.Contains(constraint, "payment_reference"):
		return ErrReferenceInUse.Message
	}
	return "Resource already exists"
}

// FieldErrors converts validator output into the response field list.
func FieldErrors(verrs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: lowerFirst(fe.Field()), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "uuid", "uuid4":
		return "must be a valid id"
	}
	return "is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// HandleError writes err using the standard error envelope.
func HandleError(c *gin.Context, err error) {
	appErr := AsAppError(err)
	resp := ErrorResponse{
		Success:    false,
		Message:    appErr.Message,
		StatusCode: appErr.StatusCode,
		Code:       appErr.Code,
		Errors:     appErr.Errors,
		RequestID:  getRequestID(c),
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", resp.RequestID).
			Str("path", c.Request.URL.Path).
			Str("detail", fmt.Sprintf("%+v", err)).
			Msg("request failed")
		if exposeErrorDetail {
			resp.Detail = err.Error()
		}
	}
	c.AbortWithStatusJSON(appErr.StatusCode, resp)
}

// BindJSON binds the request body and writes a validation error on failure.
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		HandleError(c, err)
		return false
	}
	return true
}
