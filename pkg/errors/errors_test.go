package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"no image", NewNoImageError(), http.StatusBadRequest},
		{"invalid type", NewInvalidFileTypeError("text/plain"), http.StatusBadRequest},
		{"too large", NewFileTooLargeError(11<<20, 10<<20), http.StatusBadRequest},
		{"invalid image", NewInvalidImageError("corrupt"), http.StatusBadRequest},
		{"auth", NewAuthenticationError("bad key"), http.StatusUnauthorized},
		{"quota", NewQuotaExhaustedError(), http.StatusPaymentRequired},
		{"rate limited", NewRateLimitedError(), http.StatusTooManyRequests},
		{"timeout", NewTimeoutError("slow"), http.StatusRequestTimeout},
		{"unavailable", NewServiceUnavailableError("down"), http.StatusServiceUnavailable},
		{"configuration", NewConfigurationError("no key"), http.StatusInternalServerError},
		{"internal", NewInternalError("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestHTTPStatusProviderError(t *testing.T) {
	t.Parallel()

	// A usable upstream status is surfaced as-is.
	assert.Equal(t, 418, NewProviderError(418, "teapot").HTTPStatus())

	// A nonsensical one falls back to 502.
	assert.Equal(t, http.StatusBadGateway, NewProviderError(200, "").HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, New(ErrorTypeProvider, "no status").HTTPStatus())
}

func TestWrapPreservesContext(t *testing.T) {
	t.Parallel()

	inner := NewInvalidImageError("bad pixels").WithContext("provider_detail", "unreadable")
	wrapped := Wrap(inner, ErrorTypeInternal, "pipeline failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypeInternal, wrapped.Type)
	assert.Equal(t, "unreadable", wrapped.Context["provider_detail"])
	assert.ErrorContains(t, wrapped, "bad pixels")
}

func TestWrapNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "nothing"))
}

func TestIs(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", NewRateLimitedError())
	assert.True(t, Is(err, ErrorTypeRateLimited))
	assert.False(t, Is(err, ErrorTypeTimeout))
	assert.False(t, Is(fmt.Errorf("plain"), ErrorTypeTimeout))
}

func TestAs(t *testing.T) {
	t.Parallel()

	typed := As(NewQuotaExhaustedError())
	assert.Equal(t, ErrorTypeQuotaExhausted, typed.Type)

	// A plain error is promoted to internal.
	plain := As(fmt.Errorf("disk on fire"))
	require.NotNil(t, plain)
	assert.Equal(t, ErrorTypeInternal, plain.Type)
	assert.ErrorContains(t, plain, "disk on fire")
}
