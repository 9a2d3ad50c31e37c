package domain

import (
	"github.com/google/uuid"

	dErrors "keybridge/pkg/domain-errors"
)

// Typed IDs keep key and claim identifiers from being swapped at call sites.
// IDs must be valid, non-nil UUIDs; parsing enforces this at trust boundaries.

type KeyID uuid.UUID

type ClaimID uuid.UUID

func ParseKeyID(s string) (KeyID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return KeyID{}, err
	}
	return KeyID(u), nil
}

func ParseClaimID(s string) (ClaimID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ClaimID{}, err
	}
	return ClaimID(u), nil
}

func (id KeyID) String() string { return uuid.UUID(id).String() }
func (id KeyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id ClaimID) String() string { return uuid.UUID(id).String() }
func (id ClaimID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewKeyID generates a fresh key identifier.
func NewKeyID() KeyID { return KeyID(uuid.New()) }

// NewClaimID generates a fresh claim identifier.
func NewClaimID() ClaimID { return ClaimID(uuid.New()) }

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid id %q", s)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be nil")
	}
	return u, nil
}

// ParticipantID is the routing code of a directory participant. The shared
// directory assigns eight-digit numeric codes.
type ParticipantID string

func ParseParticipantID(s string) (ParticipantID, error) {
	if len(s) != 8 {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "participant id must be 8 digits, got %q", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", dErrors.Newf(dErrors.CodeInvalidInput, "participant id must be numeric, got %q", s)
		}
	}
	return ParticipantID(s), nil
}

func (p ParticipantID) String() string { return string(p) }
