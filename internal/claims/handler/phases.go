package handler

import (
	"context"

	"keybridge/internal/claims/models"
	keymodels "keybridge/internal/keys/models"
)

// HandleOpened processes a claim-opened notification. The claimant-side row
// drives the decision when one exists (self-service branch, rooted in the
// pending row the local claim request created); otherwise the locally
// custodied row does (local-custodian branch, which also materializes the
// claimant row).
func (h *Handlers) HandleOpened(ctx context.Context, ev models.LifecycleEvent) (*keymodels.Key, error) {
	return h.apply(ctx, ev, roleClaimant, false)
}

// HandleWaiting moves an ownership claim into its resolution window.
func (h *Handlers) HandleWaiting(ctx context.Context, ev models.LifecycleEvent) (*keymodels.Key, error) {
	return h.apply(ctx, ev, roleClaimant, false)
}

// HandleConfirming confirms a claim whose resolution window elapsed without
// cancellation, retiring an unresponsive local holder along the way.
func (h *Handlers) HandleConfirming(ctx context.Context, ev models.LifecycleEvent) (*keymodels.Key, error) {
	return h.apply(ctx, ev, roleClaimant, false)
}

// HandleCompleting finalizes a confirmed claim and puts the key in service at
// the claimer.
func (h *Handlers) HandleCompleting(ctx context.Context, ev models.LifecycleEvent) (*keymodels.Key, error) {
	return h.apply(ctx, ev, roleClaimant, false)
}

// HandleCanceling withdraws an in-flight claim on the claimer's request.
func (h *Handlers) HandleCanceling(ctx context.Context, ev models.LifecycleEvent) (*keymodels.Key, error) {
	return h.apply(ctx, ev, roleClaimant, false)
}

// HandleClosing releases a locally custodied key whose claim resolved against
// the holder.
func (h *Handlers) HandleClosing(ctx context.Context, ev models.LifecycleEvent) (*keymodels.Key, error) {
	return h.apply(ctx, ev, roleHolder, false)
}

// HandleDenied records the holder's denial and returns the key to service.
func (h *Handlers) HandleDenied(ctx context.Context, ev models.LifecycleEvent) (*keymodels.Key, error) {
	return h.apply(ctx, ev, roleHolder, false)
}

// HandleDeadLetter re-applies an event whose registry call previously failed
// transiently. The bus delays re-delivery between cycles; once the attempt
// bound is spent a renewed outage becomes a terminal failure on the key, so
// the dead-letter channel never loops forever.
func (h *Handlers) HandleDeadLetter(ctx context.Context, ev models.LifecycleEvent) (*keymodels.Key, error) {
	r := roleClaimant
	switch ev.Kind {
	case models.EventClaimClosing, models.EventClaimDenied:
		r = roleHolder
	}
	return h.apply(ctx, ev, r, ev.Attempt >= h.maxAttempts)
}
