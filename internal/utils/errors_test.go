package utils

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorIsMatchesCode(t *testing.T) {
	specific := ErrInsufficientStock.WithMessage("Only %d left", 2)
	assert.Equal(t, "Only 2 left", specific.Message)
	assert.ErrorIs(t, specific, ErrInsufficientStock)
	assert.NotErrorIs(t, specific, ErrReviewExists)

	cause := errors.New("boom")
	wrapped := fmt.Errorf("placing order: %w", ErrGatewayUnavailable.Wrap(cause))
	assert.ErrorIs(t, wrapped, ErrGatewayUnavailable)
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, http.StatusBadGateway, AsAppError(wrapped).StatusCode)
}

func TestStatusConstructors(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
		code   string
	}{
		{Unprocessable("Order is not paid through Paystack"), http.StatusUnprocessableEntity, "UNPROCESSABLE"},
		{TooManyRequests("slow down"), http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}

func TestAsAppErrorTranslatesStorageErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"no rows", sql.ErrNoRows, http.StatusNotFound},
		{"unique", &pq.Error{Code: "23505", Constraint: "products_slug_key"}, http.StatusConflict},
		{"foreign key", &pq.Error{Code: "23503"}, http.StatusBadRequest},
		{"check", &pq.Error{Code: "23514"}, http.StatusBadRequest},
		{"syntax", &json.SyntaxError{}, http.StatusBadRequest},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, AsAppError(tt.err).StatusCode)
		})
	}

	dup := AsAppError(&pq.Error{Code: "23505", Constraint: "product_variants_sku_key"})
	assert.Equal(t, ErrSKUExists.Message, dup.Message)
}

func TestHandleErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetExposeErrorDetail(false)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	c.Set("request_id", "req-1")

	HandleError(c, Validation([]FieldError{{Field: "basePrice", Message: "must be greater than 0"}}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Equal(t, "req-1", body.RequestID)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "basePrice", body.Errors[0].Field)
	assert.True(t, c.IsAborted())
}

func TestHandleErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, expose := range []bool{false, true} {
		SetExposeErrorDetail(expose)
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

		HandleError(c, errors.New("pq: connection refused"))

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, http.StatusInternalServerError, body.StatusCode)
		if expose {
			assert.Contains(t, body.Detail, "connection refused")
		} else {
			assert.Empty(t, body.Detail)
		}
	}
	SetExposeErrorDetail(false)
}

func TestBindJSONReportsFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	type payload struct {
		Email    string `json:"email" binding:"required,email"`
		Quantity int    `json:"quantity" binding:"gte=1"`
	}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/x", jsonBody(`{"email":"nope","quantity":0}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var p payload
	assert.False(t, BindJSON(c, &p))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Errors, 2)
	assert.Equal(t, "email", body.Errors[0].Field)
	assert.Equal(t, "must be a valid email", body.Errors[0].Message)
	assert.Equal(t, "quantity", body.Errors[1].Field)
}
