package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keybridge/internal/claims/models"
	"keybridge/internal/registry/ports"
	"keybridge/internal/registry/token"
	id "keybridge/pkg/domain"
)

func testClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tokens := token.NewService("test-key", "12345678", srv.URL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(srv.URL, tokens, logger, opts...)
}

func testRequest() ports.ClaimRequest {
	return ports.ClaimRequest{
		ClaimID:   id.NewClaimID(),
		KeyValue:  "user@example.com",
		Kind:      models.KindOwnership,
		Claimer:   "12345678",
		Custodian: "87654321",
		Reason:    models.ReasonUserRequested,
	}
}

func TestPostSendsSignedPayload(t *testing.T) {
	req := testRequest()
	var got struct {
		ClaimID  string `json:"claimId"`
		KeyValue string `json:"key"`
		Kind     string `json:"type"`
		Donor    string `json:"donor"`
	}
	var auth, path string

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, c.CreateClaim(context.Background(), req))

	assert.True(t, strings.HasPrefix(auth, "Bearer "), "bearer token missing")
	assert.Equal(t, "/claims/"+req.ClaimID.String()+"/create", path)
	assert.Equal(t, req.ClaimID.String(), got.ClaimID)
	assert.Equal(t, "user@example.com", got.KeyValue)
	assert.Equal(t, string(models.KindOwnership), got.Kind)
	assert.Equal(t, "87654321", got.Donor)
}

func TestPostTranslatesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ports.FailureKind
		code   string
	}{
		{
			name:   "conflict",
			status: http.StatusConflict,
			body:   `{"code":"CLAIM_ALREADY_OPEN","message":"another claim holds the key"}`,
			kind:   ports.FailureConflict,
			code:   "CLAIM_ALREADY_OPEN",
		},
		{
			name:   "gateway timeout",
			status: http.StatusGatewayTimeout,
			kind:   ports.FailureTimeout,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			kind:   ports.FailureUnavailable,
		},
		{
			name:   "business rejection",
			status: http.StatusUnprocessableEntity,
			body:   `{"code":"ENTRY_INVALID","message":"claim already resolved"}`,
			kind:   ports.FailureRejected,
			code:   "ENTRY_INVALID",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			})

			err := c.ConfirmClaim(context.Background(), testRequest())
			require.Error(t, err)

			var failure *ports.Failure
			require.True(t, errors.As(err, &failure))
			assert.Equal(t, tt.kind, failure.Kind)
			assert.Equal(t, tt.code, failure.Code)
			assert.NotEmpty(t, failure.Message)
		})
	}
}

func TestWithTimeoutBoundsSlowCalls(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	}, WithTimeout(50*time.Millisecond))

	err := c.CreateClaim(context.Background(), testRequest())
	require.Error(t, err)

	var failure *ports.Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, ports.FailureTimeout, failure.Kind)
	assert.True(t, failure.Transient())
}

func TestBreakerFailsFastDuringOutage(t *testing.T) {
	hits := 0
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	})

	// Five consecutive transient failures open the circuit.
	for i := 0; i < 5; i++ {
		err := c.CompleteClaim(context.Background(), testRequest())
		require.Error(t, err)
	}
	require.Equal(t, 5, hits)

	err := c.CompleteClaim(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, 5, hits, "open circuit short-circuits before the wire")

	var failure *ports.Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, ports.FailureUnavailable, failure.Kind)
}

func TestPostConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listens anymore

	tokens := token.NewService("test-key", "12345678", srv.URL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(srv.URL, tokens, logger)

	err := c.DenyClaim(context.Background(), testRequest())
	require.Error(t, err)

	var failure *ports.Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, ports.FailureUnavailable, failure.Kind)
	assert.True(t, failure.Transient())
}
