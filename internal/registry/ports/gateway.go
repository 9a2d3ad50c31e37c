// Package ports defines the interface the claim lifecycle depends on to talk
// to the shared external directory. The domain layer depends on this port;
// adapters (HTTP client, mock) implement it. This keeps handlers independent
// of the directory's wire protocol and service location.
package ports

import (
	"context"
	"fmt"

	"keybridge/internal/claims/models"
	id "keybridge/pkg/domain"
	"keybridge/pkg/platform/sentinel"
)

// ClaimRequest carries the claim plus both participant codes for a registry
// operation.
type ClaimRequest struct {
	ClaimID   id.ClaimID
	KeyValue  string
	Kind      models.ClaimKind
	Claimer   id.ParticipantID
	Custodian id.ParticipantID
	Reason    models.ClaimReason
}

//go:generate mockgen -source=gateway.go -destination=mocks/gateway_mock.go -package=mocks Gateway

// Gateway is the consumed interface to the external registry's claim API.
// Every call either succeeds or returns a *Failure.
type Gateway interface {
	CreateClaim(ctx context.Context, req ClaimRequest) error
	ConfirmClaim(ctx context.Context, req ClaimRequest) error
	CompleteClaim(ctx context.Context, req ClaimRequest) error
	CancelClaim(ctx context.Context, req ClaimRequest) error
	CloseClaim(ctx context.Context, req ClaimRequest) error
	DenyClaim(ctx context.Context, req ClaimRequest) error
}

// FailureKind classifies a gateway failure for routing.
type FailureKind string

const (
	// FailureUnavailable and FailureTimeout are transient: the handler routes
	// the triggering event to the dead-letter channel for bounded retry.
	FailureUnavailable FailureKind = "unavailable"
	FailureTimeout     FailureKind = "timeout"
	// FailureRejected and FailureConflict are terminal business failures and
	// propagate to the handler's failure branch without retry.
	FailureRejected FailureKind = "rejected"
	FailureConflict FailureKind = "conflict"
)

// Failure is a typed gateway failure. It unwraps to the matching sentinel so
// callers can branch with errors.Is.
type Failure struct {
	Kind    FailureKind
	Code    string
	Message string
}

func (f *Failure) Error() string {
	if f.Code != "" {
		return fmt.Sprintf("registry %s (%s): %s", f.Kind, f.Code, f.Message)
	}
	return fmt.Sprintf("registry %s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	switch f.Kind {
	case FailureUnavailable, FailureTimeout:
		return sentinel.ErrUnavailable
	case FailureConflict:
		return sentinel.ErrConflict
	default:
		return sentinel.ErrRejected
	}
}

// Transient reports whether the failure should ride the dead-letter path.
func (f *Failure) Transient() bool {
	return f.Kind == FailureUnavailable || f.Kind == FailureTimeout
}
