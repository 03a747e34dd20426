package utils

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response defines the standard success envelope.
type Response struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	RequestID  string      `json:"requestId,omitempty"`
}

// ErrorResponse defines the standard error envelope.
type ErrorResponse struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message"`
	StatusCode int          `json:"statusCode"`
	Code       string       `json:"code,omitempty"`
	Errors     []FieldError `json:"errors,omitempty"`
	Detail     string       `json:"detail,omitempty"`
	RequestID  string       `json:"requestId,omitempty"`
}

// Success writes a success response with the standard envelope.
func Success(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: getRequestID(c),
	})
}

// SuccessWithPagination writes a success response with pagination metadata.
func SuccessWithPagination(c *gin.Context, code int, message string, data interface{}, page, limit, total int) {
	p := NewPagination(page, limit, total)
	c.JSON(code, Response{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: &p,
		RequestID:  getRequestID(c),
	})
}

// Error writes an error response with provided API error code and message.
func Error(c *gin.Context, code int, errCode, message string) {
	c.JSON(code, ErrorResponse{
		Success:    false,
		Message:    message,
		StatusCode: code,
		Code:       errCode,
		RequestID:  getRequestID(c),
	})
}

func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return uuid.New().String()[:8]
}
