// Package handler exposes the key registration surface over HTTP. It stays
// thin: decode, delegate to the service, translate errors.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	claimmodels "keybridge/internal/claims/models"
	"keybridge/internal/keys/models"
	"keybridge/internal/transport/http/shared"
	id "keybridge/pkg/domain"
	dErrors "keybridge/pkg/domain-errors"
)

// Service defines the key operations the HTTP surface needs.
type Service interface {
	Register(ctx context.Context, kind models.KeyKind, value, owner string) (*models.Key, error)
	RequestDelete(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Cancel(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	RequestClaim(ctx context.Context, kind models.KeyKind, value, owner string, claimKind claimmodels.ClaimKind) (*models.Key, error)
	Get(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Lookup(ctx context.Context, value string) (*models.Key, error)
}

// Handler handles key registration endpoints.
type Handler struct {
	keys   Service
	logger *slog.Logger
}

func New(keys Service, logger *slog.Logger) *Handler {
	return &Handler{keys: keys, logger: logger}
}

// Register registers the key routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/keys", func(r chi.Router) {
		r.Post("/", h.handleRegister)
		r.Get("/lookup", h.handleLookup)
		r.Get("/{keyID}", h.handleGet)
		r.Delete("/{keyID}", h.handleDelete)
		r.Post("/{keyID}/cancel", h.handleCancel)
	})
	r.Post("/claims", h.handleRequestClaim)
}

type registerRequest struct {
	Kind  models.KeyKind `json:"kind"`
	Value string         `json:"value"`
	Owner string         `json:"owner"`
}

type claimRequest struct {
	Kind      models.KeyKind        `json:"kind"`
	Value     string                `json:"value"`
	Owner     string                `json:"owner"`
	ClaimKind claimmodels.ClaimKind `json:"claimKind"`
}

// keyResponse is the public view of a key. Version stays internal.
type keyResponse struct {
	ID        string          `json:"id"`
	Value     string          `json:"value"`
	Kind      models.KeyKind  `json:"kind"`
	Owner     string          `json:"owner,omitempty"`
	State     models.KeyState `json:"state"`
	ClaimID   string          `json:"claimId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toResponse(key *models.Key) keyResponse {
	resp := keyResponse{
		ID:        key.ID.String(),
		Value:     key.Value,
		Kind:      key.Kind,
		Owner:     key.Owner,
		State:     key.State,
		CreatedAt: key.CreatedAt,
		UpdatedAt: key.UpdatedAt,
	}
	if key.HasActiveClaim() {
		resp.ClaimID = key.ActiveClaimID.String()
	}
	return resp
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	key, err := h.keys.Register(ctx, req.Kind, req.Value, req.Owner)
	if err != nil {
		h.logger.WarnContext(ctx, "key registration rejected", "kind", string(req.Kind), "error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(key))
}

func (h *Handler) handleRequestClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	key, err := h.keys.RequestClaim(ctx, req.Kind, req.Value, req.Owner, req.ClaimKind)
	if err != nil {
		h.logger.WarnContext(ctx, "claim request rejected", "claim_kind", string(req.ClaimKind), "error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusAccepted, toResponse(key))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	keyID, err := id.ParseKeyID(chi.URLParam(r, "keyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	key, err := h.keys.Get(r.Context(), keyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(key))
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "value query parameter is required"))
		return
	}
	key, err := h.keys.Lookup(r.Context(), value)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(key))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	keyID, err := id.ParseKeyID(chi.URLParam(r, "keyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	key, err := h.keys.RequestDelete(r.Context(), keyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusAccepted, toResponse(key))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	keyID, err := id.ParseKeyID(chi.URLParam(r, "keyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	key, err := h.keys.Cancel(r.Context(), keyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(key))
}
