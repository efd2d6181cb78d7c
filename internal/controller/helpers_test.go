package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusAccepted, WebhookAckResponse{Received: true, Outcome: "applied"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"received":true,"outcome":"applied"}`, w.Body.String())

	w = httptest.NewRecorder()
	writeJSON(w, http.StatusConflict, ErrorResponse{Error: "transactions already claimed", Code: "already_claimed"})
	assert.JSONEq(t, `{"error":"transactions already claimed","code":"already_claimed"}`, w.Body.String())
}

func TestWriteError_ValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	err := domainErrors.NewValidationError("period_end", "must be after period_start")

	writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), err)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "validation_error", response.Code)
	assert.Contains(t, response.Error, "period_end")
}

func TestWriteError_DomainErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "payout not found",
			err:            domainErrors.ErrPayoutNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   "not_found",
		},
		{
			name:           "wrapped vendor not found",
			err:            fmt.Errorf("load vendor: %w", domainErrors.ErrVendorNotFound),
			expectedStatus: http.StatusNotFound,
			expectedCode:   "not_found",
		},
		{
			name:           "nothing to settle",
			err:            domainErrors.ErrEmptySettlement,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "nothing_to_settle",
		},
		{
			name:           "non-positive net wrapped in domain error",
			err:            domainErrors.NewDomainError("non_positive_net", "net -5", domainErrors.ErrNonPositiveNet),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "non_positive_net",
		},
		{
			name:           "already claimed",
			err:            domainErrors.ErrTransactionsAlreadyClaimed,
			expectedStatus: http.StatusConflict,
			expectedCode:   "already_claimed",
		},
		{
			name:           "invalid state transition",
			err:            domainErrors.NewDomainError("invalid_transition", "cannot complete", domainErrors.ErrInvalidStateTransition),
			expectedStatus: http.StatusConflict,
			expectedCode:   "invalid_state_transition",
		},
		{
			name:           "missing signature",
			err:            domainErrors.ErrMissingSignature,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "missing_signature",
		},
		{
			name:           "invalid signature",
			err:            fmt.Errorf("%w: timestamp outside tolerance", domainErrors.ErrInvalidSignature),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "invalid_signature",
		},
		{
			name:           "malformed event",
			err:            domainErrors.ErrMalformedEvent,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "malformed_event",
		},
		{
			name:           "provider unavailable",
			err:            domainErrors.ErrProviderUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "provider_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response ErrorResponse
			err := json.NewDecoder(w.Body).Decode(&response)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, response.Code)
		})
	}
}

func TestWriteError_GenericDomainError(t *testing.T) {
	w := httptest.NewRecorder()
	err := domainErrors.NewDomainError("custom_error", "custom error message", nil)

	writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), err)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "custom_error", response.Code)
	assert.Equal(t, "custom error message", response.Error)
}

func TestWriteError_UnknownError_FallbackToInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	err := errors.New("unexpected error")

	writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), err)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "internal_error", response.Code)
	assert.Equal(t, "internal server error", response.Error)
}

func TestDecodeAndValidate_Success(t *testing.T) {
	type TestStruct struct {
		Name  string `json:"name" validate:"required"`
		Email string `json:"email" validate:"required,email"`
	}

	body := `{"name":"John","email":"john@example.com"}`
	req := httptest.NewRequest("POST", "/test", strings.NewReader(body))

	var result TestStruct
	err := decodeAndValidate(req, &result)

	require.NoError(t, err)
	assert.Equal(t, "John", result.Name)
	assert.Equal(t, "john@example.com", result.Email)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	type TestStruct struct {
		Name string `json:"name"`
	}

	body := `{invalid json}`
	req := httptest.NewRequest("POST", "/test", strings.NewReader(body))

	var result TestStruct
	err := decodeAndValidate(req, &result)

	assert.Error(t, err)
	var validationErr *domainErrors.ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "body", validationErr.Field)
	assert.Contains(t, validationErr.Message, "invalid JSON")
}

func TestDecodeAndValidate_ValidationFailure_RequiredField(t *testing.T) {
	type TestStruct struct {
		Name string `json:"name" validate:"required"`
	}

	body := `{"name":""}`
	req := httptest.NewRequest("POST", "/test", strings.NewReader(body))

	var result TestStruct
	err := decodeAndValidate(req, &result)

	assert.Error(t, err)
	var validationErr *domainErrors.ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Message, "validation failed")
}

func TestDecodeAndValidate_ValidationFailure_EmailFormat(t *testing.T) {
	type TestStruct struct {
		Email string `json:"email" validate:"required,email"`
	}

	body := `{"email":"not-an-email"}`
	req := httptest.NewRequest("POST", "/test", strings.NewReader(body))

	var result TestStruct
	err := decodeAndValidate(req, &result)

	assert.Error(t, err)
	var validationErr *domainErrors.ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "Email", validationErr.Field)
	assert.Contains(t, validationErr.Message, "validation failed")
}

func TestDecodeAndValidate_EmptyBody(t *testing.T) {
	type TestStruct struct {
		Name string `json:"name" validate:"required"`
	}

	req := httptest.NewRequest("POST", "/test", bytes.NewReader([]byte{}))

	var result TestStruct
	err := decodeAndValidate(req, &result)

	assert.Error(t, err)
}

func TestListFilterFromQuery(t *testing.T) {
	vendorID := "8d1e7a0c-5f3e-4b7a-9c55-0c1f3b7a2e11"
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/payouts?vendor_id="+vendorID+"&status=failed&from=2026-01-01T00:00:00Z&limit=10000&offset=20", nil)

	filter, err := listFilterFromQuery(req)

	require.NoError(t, err)
	require.NotNil(t, filter.VendorID)
	assert.Equal(t, vendorID, filter.VendorID.String())
	require.NotNil(t, filter.Status)
	assert.Equal(t, "failed", string(*filter.Status))
	require.NotNil(t, filter.From)
	assert.Nil(t, filter.To)
	assert.Equal(t, maxPageSize, filter.Limit)
	assert.Equal(t, 20, filter.Offset)
}

func TestListFilterFromQuery_Invalid(t *testing.T) {
	for _, query := range []string{"vendor_id=nope", "from=yesterday", "limit=-1", "tenant_id=1"} {
		t.Run(query, func(t *testing.T) {
			_, err := listFilterFromQuery(httptest.NewRequest(http.MethodGet, "/api/v1/payouts?"+query, nil))
			assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
		})
	}
}
