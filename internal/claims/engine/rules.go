package engine

import (
	"keybridge/internal/claims/models"
	keymodels "keybridge/internal/keys/models"
	dErrors "keybridge/pkg/domain-errors"
)

// transitions is the full lifecycle table. Adding a state or phase is a table
// insertion, not a control-flow rewrite.
var transitions = map[transitionKey]rule{
	// Claim opened.
	{keymodels.StateReady, models.EventOpened}:              ruleOpened,
	{keymodels.StateOwnershipPending, models.EventOpened}:   ruleOpened,
	{keymodels.StatePortabilityPending, models.EventOpened}: ruleOpened,
	{keymodels.StateOwnershipOpened, models.EventOpened}:    ruleOpened,
	{keymodels.StatePortabilityOpened, models.EventOpened}:  ruleOpened,
	{keymodels.StateOwnershipStarted, models.EventOpened}:   ruleNoOp,
	{keymodels.StatePortabilityStarted, models.EventOpened}: ruleNoOp,
	{keymodels.StateOwnershipWaiting, models.EventOpened}:   ruleNoOp,
	{keymodels.StateClaimPending, models.EventOpened}:       ruleNoOp,

	// Resolution window opens.
	{keymodels.StateOwnershipStarted, models.EventWait}: ruleWait,
	{keymodels.StateOwnershipWaiting, models.EventWait}: ruleNoOp,

	// Resolution window elapsed without cancellation.
	{keymodels.StateOwnershipWaiting, models.EventConfirm}:     ruleConfirm,
	{keymodels.StatePortabilityStarted, models.EventConfirm}:   ruleConfirm,
	{keymodels.StateOwnershipConfirmed, models.EventConfirm}:   ruleNoOp,
	{keymodels.StatePortabilityConfirmed, models.EventConfirm}: ruleNoOp,

	// Completion window elapsed; claim finalizes.
	{keymodels.StateOwnershipConfirmed, models.EventComplete}:   ruleComplete,
	{keymodels.StatePortabilityConfirmed, models.EventComplete}: ruleComplete,
	{keymodels.StateOwnershipReady, models.EventComplete}:       ruleNoOp,
	{keymodels.StatePortabilityReady, models.EventComplete}:     ruleNoOp,

	// User-requested cancellation of an in-flight claim.
	{keymodels.StateOwnershipOpened, models.EventCancelRequested}:      ruleCancel,
	{keymodels.StateOwnershipStarted, models.EventCancelRequested}:     ruleCancel,
	{keymodels.StateOwnershipWaiting, models.EventCancelRequested}:     ruleCancel,
	{keymodels.StateOwnershipCanceling, models.EventCancelRequested}:   ruleCancel,
	{keymodels.StatePortabilityOpened, models.EventCancelRequested}:    ruleCancel,
	{keymodels.StatePortabilityStarted, models.EventCancelRequested}:   ruleCancel,
	{keymodels.StatePortabilityCanceling, models.EventCancelRequested}: ruleCancel,
	{keymodels.StateOwnershipCanceled, models.EventCancelRequested}:    ruleNoOp,
	{keymodels.StatePortabilityCanceled, models.EventCancelRequested}:  ruleNoOp,

	// Holder releases the key (claim resolved against the holder).
	{keymodels.StateClaimPending, models.EventClaimClosing}:      ruleClosing,
	{keymodels.StateClaimNotConfirmed, models.EventClaimClosing}: ruleClosing,
	{keymodels.StateClaimClosing, models.EventClaimClosing}:      ruleClosing,
	{keymodels.StateClaimClosed, models.EventClaimClosing}:       ruleNoOp,

	// Holder denies the claim; key returns to service.
	{keymodels.StateClaimPending, models.EventClaimDenied}: ruleDenied,
	{keymodels.StateClaimDenied, models.EventClaimDenied}:  ruleDenied,
	{keymodels.StateReady, models.EventClaimDenied}:        ruleNoOp,
}

func ruleNoOp(*Engine, Input) (Decision, error) {
	return Decision{NoOp: true}, nil
}

func ruleOpened(e *Engine, in Input) (Decision, error) {
	kind := in.Event.ClaimKind
	if in.Claim != nil {
		kind = in.Claim.Kind
	}
	if kind != models.KindOwnership && kind != models.KindPortability {
		return Decision{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown claim kind %q", kind)
	}

	switch e.policy.Classify(in.Event, in.Holder) {
	case BranchLocalCustodian:
		// The claimed key is custodied here: the holder must confirm or lose
		// it, and a claimant-side row tracks the competing claim.
		counterpart := &CounterpartChange{Create: true}
		claimStatus := models.StatusOpen
		if kind == models.KindOwnership {
			counterpart.State = keymodels.StateOwnershipWaiting
			counterpart.Event = models.DomainOwnershipWaiting
			claimStatus = models.StatusWaiting
		} else {
			counterpart.State = keymodels.StatePortabilityStarted
			counterpart.Event = models.DomainPortabilityStarted
		}
		return Decision{
			PendingState: keymodels.StateClaimPending,
			FinalState:   keymodels.StateClaimPending,
			Event:        models.DomainClaimPending,
			ClaimStatus:  claimStatus,
			Counterpart:  counterpart,
		}, nil

	default: // BranchSelfService
		if kind == models.KindOwnership {
			return Decision{
				PendingState: keymodels.StateOwnershipOpened,
				FinalState:   keymodels.StateOwnershipStarted,
				FailState:    keymodels.StateOwnershipCanceled,
				Action:       ActionCreateClaim,
				Event:        models.DomainOwnershipStarted,
				ClaimStatus:  models.StatusOpen,
			}, nil
		}
		return Decision{
			PendingState: keymodels.StatePortabilityOpened,
			FinalState:   keymodels.StatePortabilityStarted,
			FailState:    keymodels.StatePortabilityCanceled,
			Action:       ActionCreateClaim,
			Event:        models.DomainPortabilityStarted,
			ClaimStatus:  models.StatusOpen,
		}, nil
	}
}

func ruleWait(_ *Engine, _ Input) (Decision, error) {
	return Decision{
		PendingState: keymodels.StateOwnershipWaiting,
		FinalState:   keymodels.StateOwnershipWaiting,
		Event:        models.DomainOwnershipWaiting,
		ClaimStatus:  models.StatusWaiting,
	}, nil
}

func ruleConfirm(_ *Engine, in Input) (Decision, error) {
	d := Decision{
		PendingState: in.Key.State,
		Action:       ActionConfirmClaim,
		ClaimStatus:  models.StatusConfirmed,
	}
	if in.Key.State == keymodels.StateOwnershipWaiting {
		d.FinalState = keymodels.StateOwnershipConfirmed
		d.FailState = keymodels.StateOwnershipCanceled
		d.Event = models.DomainOwnershipConfirmed
	} else {
		d.FinalState = keymodels.StatePortabilityConfirmed
		d.FailState = keymodels.StatePortabilityCanceled
		d.Event = models.DomainPortabilityConfirmed
	}
	// A local holder that never responded within the resolution window is
	// marked not-confirmed; the closing phase retires it.
	if in.Holder != nil && in.Holder.State == keymodels.StateClaimPending {
		d.Counterpart = &CounterpartChange{
			Holder: true,
			State:  keymodels.StateClaimNotConfirmed,
		}
	}
	return d, nil
}

func ruleComplete(_ *Engine, in Input) (Decision, error) {
	d := Decision{
		PendingState: in.Key.State,
		Action:       ActionCompleteClaim,
		ClaimStatus:  models.StatusCompleted,
	}
	if in.Key.State == keymodels.StateOwnershipConfirmed {
		d.FinalState = keymodels.StateOwnershipReady
		d.FailState = keymodels.StateOwnershipCanceled
		d.Event = models.DomainOwnershipReady
	} else {
		d.FinalState = keymodels.StatePortabilityReady
		d.FailState = keymodels.StatePortabilityCanceled
		d.Event = models.DomainPortabilityReady
	}
	return d, nil
}

func ruleCancel(_ *Engine, in Input) (Decision, error) {
	d := Decision{
		Action:      ActionCancelClaim,
		ClaimStatus: models.StatusCanceled,
	}
	if ownershipBranch(in.Key.State) {
		d.PendingState = keymodels.StateOwnershipCanceling
		d.FinalState = keymodels.StateOwnershipCanceled
		d.FailState = keymodels.StateOwnershipCanceled
		d.Event = models.DomainOwnershipCanceled
	} else {
		d.PendingState = keymodels.StatePortabilityCanceling
		d.FinalState = keymodels.StatePortabilityCanceled
		d.FailState = keymodels.StatePortabilityCanceled
		d.Event = models.DomainPortabilityCanceled
	}
	return d, nil
}

func ruleClosing(_ *Engine, in Input) (Decision, error) {
	return Decision{
		PendingState: keymodels.StateClaimClosing,
		FinalState:   keymodels.StateClaimClosed,
		FailState:    keymodels.StateClaimClosed,
		Action:       ActionCloseClaim,
		Event:        models.DomainClaimClosed,
		ClaimStatus:  models.StatusClosed,
	}, nil
}

func ruleDenied(_ *Engine, in Input) (Decision, error) {
	return Decision{
		PendingState: keymodels.StateClaimDenied,
		FinalState:   keymodels.StateReady,
		FailState:    keymodels.StateClaimClosed,
		Action:       ActionDenyClaim,
		Event:        models.DomainClaimDenied,
		ClaimStatus:  models.StatusDenied,
	}, nil
}

func ownershipBranch(s keymodels.KeyState) bool {
	switch s {
	case keymodels.StateOwnershipPending, keymodels.StateOwnershipOpened,
		keymodels.StateOwnershipStarted, keymodels.StateOwnershipWaiting,
		keymodels.StateOwnershipConfirmed, keymodels.StateOwnershipCanceling,
		keymodels.StateOwnershipCanceled, keymodels.StateOwnershipReady:
		return true
	}
	return false
}
