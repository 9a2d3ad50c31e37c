package models

import (
	"time"

	"keybridge/internal/keys/models"
	id "keybridge/pkg/domain"
)

// EventKind names an inbound lifecycle event, one per claim phase topic.
type EventKind string

const (
	EventOpened          EventKind = "claim_opened"
	EventWait            EventKind = "wait"
	EventConfirm         EventKind = "confirm"
	EventComplete        EventKind = "complete"
	EventCancelRequested EventKind = "cancel_requested"
	EventClaimClosing    EventKind = "claim_closing"
	EventClaimDenied     EventKind = "claim_denied"
)

// LifecycleEvent is the payload consumed from the phase topics. The same shape
// rides the dead-letter channel, with Attempt incremented on each republish.
type LifecycleEvent struct {
	EventID      string           `json:"eventId"`
	Kind         EventKind        `json:"kind"`
	KeyID        string           `json:"keyId,omitempty"`
	KeyValue     string           `json:"keyValue"`
	KeyKind      models.KeyKind   `json:"keyKind,omitempty"`
	CurrentState models.KeyState  `json:"currentState"`
	ClaimID      string           `json:"claimId,omitempty"`
	ClaimKind    ClaimKind        `json:"claimKind,omitempty"`
	Participant  id.ParticipantID `json:"participantId"`
	Reason       ClaimReason      `json:"reason,omitempty"`
	Attempt      int              `json:"attempt"`
	OccurredAt   time.Time        `json:"occurredAt"`
}

// DomainEventType names an outbound event published after a successful
// transition.
type DomainEventType string

const (
	DomainKeyRegistered        DomainEventType = "key_registered"
	DomainKeyReady             DomainEventType = "key_ready"
	DomainKeyCanceled          DomainEventType = "key_canceled"
	DomainKeyDeleted           DomainEventType = "key_deleted"
	DomainClaimPending         DomainEventType = "claim_pending"
	DomainClaimClosed          DomainEventType = "claim_closed"
	DomainClaimDenied          DomainEventType = "claim_denied"
	DomainClaimFailed          DomainEventType = "claim_failed"
	DomainOwnershipStarted     DomainEventType = "ownership_started"
	DomainOwnershipWaiting     DomainEventType = "ownership_waiting"
	DomainOwnershipConfirmed   DomainEventType = "ownership_confirmed"
	DomainOwnershipCanceled    DomainEventType = "ownership_canceled"
	DomainOwnershipReady       DomainEventType = "ownership_ready"
	DomainPortabilityStarted   DomainEventType = "portability_started"
	DomainPortabilityConfirmed DomainEventType = "portability_confirmed"
	DomainPortabilityCanceled  DomainEventType = "portability_canceled"
	DomainPortabilityReady     DomainEventType = "portability_ready"
)

// DomainEvent mirrors the key's post-transition public fields for downstream
// consumers (ledger, notifications). Keep it transport-agnostic so stores and
// sinks can fan out.
type DomainEvent struct {
	Type        DomainEventType  `json:"type"`
	KeyID       id.KeyID         `json:"keyId"`
	KeyValue    string           `json:"keyValue"`
	KeyKind     models.KeyKind   `json:"keyKind"`
	State       models.KeyState  `json:"state"`
	ClaimID     string           `json:"claimId,omitempty"`
	ClaimKind   ClaimKind        `json:"claimKind,omitempty"`
	Participant id.ParticipantID `json:"participantId,omitempty"`
	FailedCode  string           `json:"failedCode,omitempty"`
	FailedMsg   string           `json:"failedMessage,omitempty"`
	OccurredAt  time.Time        `json:"occurredAt"`
}
