package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	id "keybridge/pkg/domain"
	dErrors "keybridge/pkg/domain-errors"
)

// KeyKind classifies the identifier value registered in the directory.
type KeyKind string

const (
	KindTaxID KeyKind = "tax_id"
	KindEmail KeyKind = "email"
	KindPhone KeyKind = "phone"
	KindToken KeyKind = "random_token"
)

// KeyState is the lifecycle state of a registered key. Values match what the
// directory emits on the wire, so they are stored and published verbatim.
type KeyState string

const (
	// Registration branch.
	StatePending   KeyState = "PENDING"
	StateConfirmed KeyState = "CONFIRMED"
	StateReady     KeyState = "READY"
	StateCanceled  KeyState = "CANCELED"
	StateAddFailed KeyState = "ADD_FAILED"
	StateDeleting  KeyState = "DELETING"
	StateDeleted   KeyState = "DELETED"

	// Donor-side claim branch: this participant custodies a key someone else
	// is claiming.
	StateClaimPending      KeyState = "CLAIM_PENDING"
	StateClaimClosing      KeyState = "CLAIM_CLOSING"
	StateClaimClosed       KeyState = "CLAIM_CLOSED"
	StateClaimDenied       KeyState = "CLAIM_DENIED"
	StateClaimNotConfirmed KeyState = "CLAIM_NOT_CONFIRMED"

	// Claimant-side ownership branch.
	StateOwnershipPending   KeyState = "OWNERSHIP_PENDING"
	StateOwnershipOpened    KeyState = "OWNERSHIP_OPENED"
	StateOwnershipStarted   KeyState = "OWNERSHIP_STARTED"
	StateOwnershipWaiting   KeyState = "OWNERSHIP_WAITING"
	StateOwnershipConfirmed KeyState = "OWNERSHIP_CONFIRMED"
	StateOwnershipCanceling KeyState = "OWNERSHIP_CANCELING"
	StateOwnershipCanceled  KeyState = "OWNERSHIP_CANCELED"
	StateOwnershipReady     KeyState = "OWNERSHIP_READY"

	// Claimant-side portability branch. Portability has no waiting phase: the
	// directory confirms it directly once the donor responds or the window
	// elapses.
	StatePortabilityPending   KeyState = "PORTABILITY_PENDING"
	StatePortabilityOpened    KeyState = "PORTABILITY_OPENED"
	StatePortabilityStarted   KeyState = "PORTABILITY_STARTED"
	StatePortabilityConfirmed KeyState = "PORTABILITY_CONFIRMED"
	StatePortabilityCanceling KeyState = "PORTABILITY_CANCELING"
	StatePortabilityCanceled  KeyState = "PORTABILITY_CANCELED"
	StatePortabilityReady     KeyState = "PORTABILITY_READY"
)

// IsTerminal reports whether no further lifecycle event may apply.
func (s KeyState) IsTerminal() bool {
	switch s {
	case StateCanceled, StateDeleted, StateAddFailed,
		StateOwnershipCanceled, StatePortabilityCanceled, StateClaimClosed:
		return true
	}
	return false
}

// InService reports whether the key currently resolves lookups for its owner.
func (s KeyState) InService() bool {
	switch s {
	case StateReady, StateClaimPending, StateClaimDenied:
		return true
	}
	return false
}

// Failure records why a key ended in a failed transition: a registry rejection
// code plus an operator-readable message.
type Failure struct {
	Code    string
	Message string
}

// Key is one registered identifier in the shared directory.
type Key struct {
	ID            id.KeyID
	Value         string
	Kind          KeyKind
	Owner         string
	State         KeyState
	ActiveClaimID *id.ClaimID
	Failed        *Failure
	// Version backs the store's compare-and-swap update. It never moves
	// except through the store.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasActiveClaim reports whether a claim episode currently references this key.
func (k *Key) HasActiveClaim() bool {
	return k.ActiveClaimID != nil && !k.ActiveClaimID.IsNil()
}

var (
	taxIDPattern = regexp.MustCompile(`^\d{11}$|^\d{14}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
)

// ValidateValue checks a key value against its kind's format.
func ValidateValue(kind KeyKind, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "key value must not be empty")
	}
	switch kind {
	case KindTaxID:
		if !taxIDPattern.MatchString(value) {
			return dErrors.Newf(dErrors.CodeInvalidInput, "tax id must be 11 or 14 digits, got %q", value)
		}
	case KindEmail:
		if len(value) > 77 || !emailPattern.MatchString(value) {
			return dErrors.Newf(dErrors.CodeInvalidInput, "invalid email key %q", value)
		}
	case KindPhone:
		if !phonePattern.MatchString(value) {
			return dErrors.Newf(dErrors.CodeInvalidInput, "phone key must be E.164, got %q", value)
		}
	case KindToken:
		if _, err := uuid.Parse(value); err != nil {
			return dErrors.Newf(dErrors.CodeInvalidInput, "random token key must be a UUID, got %q", value)
		}
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown key kind %q", kind)
	}
	return nil
}
