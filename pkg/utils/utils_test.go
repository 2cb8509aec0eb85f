package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/test", handler)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestResponse(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		w := performRequest(func(c *gin.Context) {
			SuccessResponse(c, gin.H{"favorited": true})
		})

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, int(CodeSuccess), resp.Code)
		assert.Equal(t, "success", resp.Message)
		assert.Empty(t, resp.Kind)
		assert.NotZero(t, resp.Timestamp)
	})

	t.Run("Created", func(t *testing.T) {
		w := performRequest(func(c *gin.Context) {
			CreatedResponse(c, gin.H{"orderId": 1})
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Page", func(t *testing.T) {
		w := performRequest(func(c *gin.Context) {
			SuccessPageResponse(c, []string{"a", "b"}, 12, 2, 2)
		})

		resp := decodeResponse(t, w)
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(12), data["total"])
		assert.Equal(t, float64(2), data["page"])
	})
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   ErrorKind
		wantMsg    string
	}{
		{"Validation", Validation("quantity must be at least 1"), http.StatusBadRequest, KindValidation, "quantity must be at least 1"},
		{"NotFound", NotFound("product %d not found", 9), http.StatusNotFound, KindNotFound, "product 9 not found"},
		{"Conflict", Conflict("already favorited"), http.StatusBadRequest, KindConflict, "already favorited"},
		{"Unauthorized", ErrUnauthorized, http.StatusUnauthorized, KindUnauthorized, ErrUnauthorized.Message},
		{"Forbidden", ErrForbidden, http.StatusForbidden, KindForbidden, ErrForbidden.Message},
		{"InsufficientStock", NewError(CodeInsufficientStock, "not enough stock for Lamp"), http.StatusBadRequest, KindInsufficientStock, "not enough stock for Lamp"},
		{"WrappedInternal", Internal(errors.New("dial tcp: refused"), "could not save notifications"), http.StatusInternalServerError, KindInternal, "could not save notifications"},
		{"PlainErrorIsHidden", errors.New("sql: connection refused"), http.StatusInternalServerError, KindInternal, ErrInternalError.Message},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(func(c *gin.Context) {
				HandleError(c, tt.err)
			})

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, string(tt.wantKind), resp.Kind)
			assert.Equal(t, tt.wantMsg, resp.Message)
			assert.NotContains(t, w.Body.String(), "refused")
		})
	}

	t.Run("DetailsAreExposed", func(t *testing.T) {
		err := Internal(errors.New("deadlock"), "price-drop check failed").
			WithDetails(map[string]interface{}{"evaluated": 3, "failed": 2})

		w := performRequest(func(c *gin.Context) {
			HandleError(c, err)
		})

		resp := decodeResponse(t, w)
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(3), data["evaluated"])
		assert.Equal(t, float64(2), data["failed"])
	})
}

func TestAppError(t *testing.T) {
	t.Run("NewError", func(t *testing.T) {
		err := NewError(CodeInvalidParam, "test error")
		assert.Equal(t, CodeInvalidParam, err.Code)
		assert.Equal(t, KindValidation, err.Kind())
		assert.Nil(t, err.Err)
		assert.Equal(t, "test error (validation_error)", err.Error())
	})

	t.Run("WrapError", func(t *testing.T) {
		originalErr := errors.New("original error")
		err := WrapError(originalErr, CodeInternalError, "service error")
		assert.Equal(t, CodeInternalError, err.Code)
		assert.ErrorIs(t, err, originalErr)
		assert.Contains(t, err.Error(), "original error")
	})

	t.Run("IsAppError", func(t *testing.T) {
		wrapped := errors.Join(errors.New("context"), NotFound("gone"))
		appErr, ok := IsAppError(wrapped)
		require.True(t, ok)
		assert.Equal(t, CodeNotFound, appErr.Code)

		_, ok = IsAppError(errors.New("normal error"))
		assert.False(t, ok)
	})

	t.Run("WithDetailsCopies", func(t *testing.T) {
		base := NotFound("gone")
		detailed := base.WithDetails(map[string]interface{}{"id": 1})
		assert.Nil(t, base.Details)
		assert.Equal(t, 1, detailed.Details["id"])
	})

	t.Run("GetErrorCodeAndMessage", func(t *testing.T) {
		assert.Equal(t, CodeConflict, GetErrorCode(Conflict("dup")))
		assert.Equal(t, CodeInternalError, GetErrorCode(errors.New("boom")))
		assert.Equal(t, "dup", GetErrorMessage(Conflict("dup")))
		assert.Equal(t, ErrInternalError.Message, GetErrorMessage(errors.New("boom")))
	})

	t.Run("UnknownCodeIsInternal", func(t *testing.T) {
		assert.Equal(t, KindInternal, ResponseCode(4242).Kind())
		assert.Equal(t, http.StatusInternalServerError, ResponseCode(4242).HTTPStatus())
	})
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"1000", "$1,000.00"},
		{"800", "$800.00"},
		{"1200.5", "$1,200.50"},
		{"0", "$0.00"},
		{"649.999", "$650.00"},
		{"-12.3", "-$12.30"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCurrency(decimal.RequireFromString(tt.amount)), tt.amount)
	}
}

func TestCurrencyFormatterLocale(t *testing.T) {
	f := NewCurrencyFormatter("de", "€")
	assert.Equal(t, "€1.234,50", f.Format(decimal.RequireFromString("1234.5")))

	fallback := NewCurrencyFormatter("not a locale!", "$")
	assert.Equal(t, "$5.00", fallback.Format(decimal.NewFromInt(5)))
}
