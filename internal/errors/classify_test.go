package errors

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   int
		expected Classification
	}{
		{http.StatusRequestTimeout, Transient},
		{http.StatusTooManyRequests, Transient},
		{http.StatusInternalServerError, Transient},
		{http.StatusBadGateway, Transient},
		{http.StatusServiceUnavailable, Transient},
		{http.StatusGatewayTimeout, Transient},
		{http.StatusUnauthorized, Permanent},
		{http.StatusForbidden, Permanent},
		{http.StatusNotFound, Permanent},
		{http.StatusBadRequest, Permanent},
		{http.StatusOK, Permanent},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ClassifyStatus(tt.status))
		})
	}
}

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "connection refused" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

var _ net.Error = (*fakeNetError)(nil)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected Classification
	}{
		{"nil", nil, Permanent},
		{"transient error value", &TransientError{Status: 503}, Transient},
		{"wrapped transient", fmt.Errorf("fetch: %w", &TransientError{Status: 429}), Transient},
		{"auth error", &AuthError{Status: 401}, Permanent},
		{"not found", &NotFoundError{Kind: KindItem, Vault: "v", Item: "i"}, Permanent},
		{"internal timeout", context.DeadlineExceeded, Transient},
		{"caller cancellation", context.Canceled, Permanent},
		{"network error", &fakeNetError{}, Transient},
		{"unknown error", fmt.Errorf("something odd"), Permanent},
		{"retry exhausted wraps transient", &RetryExhaustedError{Attempts: 4, Err: &TransientError{Status: 503}}, Transient},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestAuthErrorNeverLeaksCredentials(t *testing.T) {
	t.Parallel()

	err := &AuthError{Status: 401, Message: "token rejected"}
	assert.NotContains(t, err.Error(), "Bearer")
	assert.Contains(t, err.Error(), "401")
}

func TestCircuitOpenErrorMessage(t *testing.T) {
	t.Parallel()

	err := &CircuitOpenError{Destination: "vault1/item1", RetryAfter: 1500 * time.Millisecond}
	assert.Contains(t, err.Error(), "vault1/item1")
	assert.Contains(t, err.Error(), "1.5s")
}
