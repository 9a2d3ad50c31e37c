package models

import (
	"time"

	id "keybridge/pkg/domain"
)

// ClaimKind distinguishes the two competing-claim protocols the directory runs.
type ClaimKind string

const (
	// KindOwnership asserts the claimer owns the identifier value itself.
	KindOwnership ClaimKind = "ownership"
	// KindPortability moves the servicing participant while ownership is
	// undisputed.
	KindPortability ClaimKind = "portability"
)

// ClaimStatus tracks one claim episode. A claim never reopens; a later
// competing claim gets a fresh Claim row.
type ClaimStatus string

const (
	StatusOpen      ClaimStatus = "OPEN"
	StatusWaiting   ClaimStatus = "WAITING_RESOLUTION"
	StatusConfirmed ClaimStatus = "CONFIRMED"
	StatusCompleted ClaimStatus = "COMPLETED"
	StatusCanceling ClaimStatus = "CANCELING"
	StatusCanceled  ClaimStatus = "CANCELED"
	StatusDenied    ClaimStatus = "DENIED"
	StatusClosed    ClaimStatus = "CLOSED"
)

// Active reports whether the claim still holds the key's single active-claim
// slot.
func (s ClaimStatus) Active() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusDenied, StatusClosed:
		return false
	}
	return true
}

// ClaimReason is the opener's stated motive. The registry owns the taxonomy;
// unknown values pass through verbatim.
type ClaimReason string

const (
	ReasonUserRequested  ClaimReason = "user_requested"
	ReasonFraud          ClaimReason = "fraud"
	ReasonAccountClosure ClaimReason = "account_closure"
	ReasonReconciliation ClaimReason = "reconciliation"
	ReasonOther          ClaimReason = "other"
)

// Claim is one competing-claim episode for a key. Kind is immutable after
// creation and the claim binds to exactly one key for its lifetime.
type Claim struct {
	ID            id.ClaimID
	KeyID         id.KeyID
	Kind          ClaimKind
	Status        ClaimStatus
	Claimer       id.ParticipantID
	Custodian     id.ParticipantID
	Reason        ClaimReason
	OpenedAt      time.Time
	ResolutionDue time.Time
	CompletionDue time.Time
	Version       int64
	UpdatedAt     time.Time
}
