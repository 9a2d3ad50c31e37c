// Package admin exposes the operator surface: full key and claim detail,
// including failure records and version counters hidden from the public API,
// plus the outbox backlog. Everything here is read-only.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	claimmodels "keybridge/internal/claims/models"
	"keybridge/internal/events"
	keymodels "keybridge/internal/keys/models"
	"keybridge/internal/platform/middleware"
	"keybridge/internal/transport/http/shared"
	id "keybridge/pkg/domain"
	dErrors "keybridge/pkg/domain-errors"
	"keybridge/pkg/platform/sentinel"
)

// KeyStore is the slice of the key store the admin surface reads.
type KeyStore interface {
	Get(ctx context.Context, keyID id.KeyID) (*keymodels.Key, error)
	FindByValue(ctx context.Context, value string) (*keymodels.Key, error)
}

// ClaimStore is the slice of the claim store the admin surface reads.
type ClaimStore interface {
	Get(ctx context.Context, claimID id.ClaimID) (*claimmodels.Claim, error)
}

// Handler serves the admin endpoints.
type Handler struct {
	keys      KeyStore
	claims    ClaimStore
	outbox    events.Outbox
	tokenHash string
	logger    *slog.Logger
}

func New(keys KeyStore, claims ClaimStore, outbox events.Outbox, tokenHash string, logger *slog.Logger) *Handler {
	return &Handler{
		keys:      keys,
		claims:    claims,
		outbox:    outbox,
		tokenHash: tokenHash,
		logger:    logger,
	}
}

// Register mounts the admin routes behind the token guard.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(h.tokenHash, h.logger))
		r.Get("/keys/{keyID}", h.handleKey)
		r.Get("/keys", h.handleKeyLookup)
		r.Get("/claims/{claimID}", h.handleClaim)
		r.Get("/outbox", h.handleOutbox)
	})
}

type keyDetail struct {
	ID            string             `json:"id"`
	Value         string             `json:"value"`
	Kind          keymodels.KeyKind  `json:"kind"`
	Owner         string             `json:"owner,omitempty"`
	State         keymodels.KeyState `json:"state"`
	ActiveClaimID string             `json:"activeClaimId,omitempty"`
	FailedCode    string             `json:"failedCode,omitempty"`
	FailedMessage string             `json:"failedMessage,omitempty"`
	Version       int64              `json:"version"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

func toKeyDetail(key *keymodels.Key) keyDetail {
	detail := keyDetail{
		ID:        key.ID.String(),
		Value:     key.Value,
		Kind:      key.Kind,
		Owner:     key.Owner,
		State:     key.State,
		Version:   key.Version,
		CreatedAt: key.CreatedAt,
		UpdatedAt: key.UpdatedAt,
	}
	if key.HasActiveClaim() {
		detail.ActiveClaimID = key.ActiveClaimID.String()
	}
	if key.Failed != nil {
		detail.FailedCode = key.Failed.Code
		detail.FailedMessage = key.Failed.Message
	}
	return detail
}

type claimDetail struct {
	ID            string                  `json:"id"`
	KeyID         string                  `json:"keyId"`
	Kind          claimmodels.ClaimKind   `json:"kind"`
	Status        claimmodels.ClaimStatus `json:"status"`
	Claimer       id.ParticipantID        `json:"claimer"`
	Custodian     id.ParticipantID        `json:"custodian"`
	Reason        claimmodels.ClaimReason `json:"reason"`
	OpenedAt      time.Time               `json:"openedAt"`
	ResolutionDue time.Time               `json:"resolutionDue"`
	CompletionDue time.Time               `json:"completionDue"`
	Version       int64                   `json:"version"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

func (h *Handler) handleKey(w http.ResponseWriter, r *http.Request) {
	keyID, err := id.ParseKeyID(chi.URLParam(r, "keyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	key, err := h.keys.Get(r.Context(), keyID)
	if err != nil {
		shared.WriteError(w, translate(err))
		return
	}
	shared.WriteJSON(w, http.StatusOK, toKeyDetail(key))
}

func (h *Handler) handleKeyLookup(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "value query parameter is required"))
		return
	}
	key, err := h.keys.FindByValue(r.Context(), value)
	if err != nil {
		shared.WriteError(w, translate(err))
		return
	}
	shared.WriteJSON(w, http.StatusOK, toKeyDetail(key))
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	claim, err := h.claims.Get(r.Context(), claimID)
	if err != nil {
		shared.WriteError(w, translate(err))
		return
	}
	shared.WriteJSON(w, http.StatusOK, claimDetail{
		ID:            claim.ID.String(),
		KeyID:         claim.KeyID.String(),
		Kind:          claim.Kind,
		Status:        claim.Status,
		Claimer:       claim.Claimer,
		Custodian:     claim.Custodian,
		Reason:        claim.Reason,
		OpenedAt:      claim.OpenedAt,
		ResolutionDue: claim.ResolutionDue,
		CompletionDue: claim.CompletionDue,
		Version:       claim.Version,
		UpdatedAt:     claim.UpdatedAt,
	})
}

// handleOutbox lists unpublished outbox entries, oldest first, so operators
// can see a stalled publisher before downstream consumers do.
func (h *Handler) handleOutbox(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	entries, err := h.outbox.Unpublished(r.Context(), limit)
	if err != nil {
		shared.WriteError(w, translate(err))
		return
	}
	type entry struct {
		ID        string                      `json:"id"`
		KeyValue  string                      `json:"keyValue"`
		EventType claimmodels.DomainEventType `json:"eventType"`
		CreatedAt time.Time                   `json:"createdAt"`
	}
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, entry{
			ID:        e.ID.String(),
			KeyValue:  e.KeyValue,
			EventType: e.EventType,
			CreatedAt: e.CreatedAt,
		})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entries": out, "count": len(out)})
}

func translate(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "not found")
	}
	return err
}
