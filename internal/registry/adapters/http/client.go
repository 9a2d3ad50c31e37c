// Package http adapts the registry gateway port onto the directory's claim
// HTTP API, translating transport outcomes into typed gateway failures.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"keybridge/internal/registry/ports"
	"keybridge/internal/registry/token"
	"keybridge/pkg/platform/circuit"
)

const defaultTimeout = 10 * time.Second

// Client calls the external registry's claim endpoints. Unavailable and
// timeout outcomes map to transient failures; 4xx business responses map to
// rejected or conflict. A circuit breaker fails calls fast during a registry
// outage so the claim pipeline routes straight to the dead-letter channel
// instead of burning its timeout on every event.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *token.Service
	breaker *circuit.Breaker
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each registry call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func New(baseURL string, tokens *token.Service, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		tokens:  tokens,
		breaker: circuit.New("registry"),
		logger:  logger,
		tracer:  otel.Tracer("keybridge/registry"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateClaim(ctx context.Context, req ports.ClaimRequest) error {
	return c.post(ctx, "create", req)
}

func (c *Client) ConfirmClaim(ctx context.Context, req ports.ClaimRequest) error {
	return c.post(ctx, "confirm", req)
}

func (c *Client) CompleteClaim(ctx context.Context, req ports.ClaimRequest) error {
	return c.post(ctx, "complete", req)
}

func (c *Client) CancelClaim(ctx context.Context, req ports.ClaimRequest) error {
	return c.post(ctx, "cancel", req)
}

func (c *Client) CloseClaim(ctx context.Context, req ports.ClaimRequest) error {
	return c.post(ctx, "close", req)
}

func (c *Client) DenyClaim(ctx context.Context, req ports.ClaimRequest) error {
	return c.post(ctx, "deny", req)
}

type claimPayload struct {
	ClaimID   string `json:"claimId"`
	KeyValue  string `json:"key"`
	Kind      string `json:"type"`
	Claimer   string `json:"claimer"`
	Custodian string `json:"donor"`
	Reason    string `json:"reason,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, op string, req ports.ClaimRequest) error {
	ctx, span := c.tracer.Start(ctx, "registry."+op,
		trace.WithAttributes(
			attribute.String("claim.id", req.ClaimID.String()),
			attribute.String("claim.kind", string(req.Kind)),
		))
	defer span.End()

	if !c.breaker.Allow() {
		span.SetStatus(codes.Error, "circuit open")
		return &ports.Failure{Kind: ports.FailureUnavailable, Message: "registry circuit open"}
	}

	payload, err := json.Marshal(claimPayload{
		ClaimID:   req.ClaimID.String(),
		KeyValue:  req.KeyValue,
		Kind:      string(req.Kind),
		Claimer:   req.Claimer.String(),
		Custodian: req.Custodian.String(),
		Reason:    string(req.Reason),
	})
	if err != nil {
		return fmt.Errorf("marshal claim payload: %w", err)
	}

	url := fmt.Sprintf("%s/claims/%s/%s", c.baseURL, req.ClaimID, op)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build claim request: %w", err)
	}
	bearer, err := c.tokens.Bearer()
	if err != nil {
		return fmt.Errorf("mint registry token: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		kind := ports.FailureUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			kind = ports.FailureTimeout
		}
		c.recordOutcome(ctx, &ports.Failure{Kind: kind})
		return &ports.Failure{Kind: kind, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.recordOutcome(ctx, nil)
		return nil
	}

	failure := c.translate(resp)
	span.SetStatus(codes.Error, failure.Error())
	c.logger.WarnContext(ctx, "registry call failed",
		"operation", op,
		"claim_id", req.ClaimID.String(),
		"status", resp.StatusCode,
		"failure", failure.Kind,
	)
	c.recordOutcome(ctx, failure)
	return failure
}

// recordOutcome feeds the breaker. Business rejections count as successes:
// they prove the registry is reachable.
func (c *Client) recordOutcome(ctx context.Context, failure *ports.Failure) {
	if failure != nil && failure.Transient() {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.ErrorContext(ctx, "registry circuit opened")
		}
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "registry circuit closed")
	}
}

func (c *Client) translate(resp *http.Response) *ports.Failure {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)
	if body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		return &ports.Failure{Kind: ports.FailureConflict, Code: body.Code, Message: body.Message}
	case resp.StatusCode == http.StatusGatewayTimeout:
		return &ports.Failure{Kind: ports.FailureTimeout, Code: body.Code, Message: body.Message}
	case resp.StatusCode >= 500:
		return &ports.Failure{Kind: ports.FailureUnavailable, Code: body.Code, Message: body.Message}
	default:
		return &ports.Failure{Kind: ports.FailureRejected, Code: body.Code, Message: body.Message}
	}
}
