// Package handler hosts one process handler per claim lifecycle phase. Each
// handler re-reads the key by its business identifier, delegates the decision
// to the engine, persists the outcome, performs at most one registry call, and
// emits the resulting domain event through the outbox.
//
// Persistence happens before the external call: a crash between the two is
// recovered by re-delivery, because every engine rule re-issues the same call
// from the pending state.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"keybridge/internal/claims/dedupe"
	"keybridge/internal/claims/engine"
	"keybridge/internal/claims/metrics"
	"keybridge/internal/claims/models"
	claimstore "keybridge/internal/claims/store"
	"keybridge/internal/events"
	keymodels "keybridge/internal/keys/models"
	keystore "keybridge/internal/keys/store"
	"keybridge/internal/registry/ports"
	id "keybridge/pkg/domain"
	dErrors "keybridge/pkg/domain-errors"
	"keybridge/pkg/platform/sentinel"
)

// DeadLetter republishes an event whose registry call failed transiently.
type DeadLetter interface {
	Republish(ctx context.Context, ev models.LifecycleEvent) error
}

// TxRunner scopes a function to one database transaction. The SQL
// implementation injects the transaction into the context for the stores and
// outbox; Passthrough serves memory-backed tests.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Passthrough runs the function without a transaction.
func Passthrough(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

const failureCodeUnavailable = "registry_unavailable"

// Handlers bundles the dependencies every phase handler shares.
type Handlers struct {
	keys       keystore.Store
	claims     claimstore.Store
	gateway    ports.Gateway
	engine     *engine.Engine
	publisher  *events.Publisher
	deadletter DeadLetter
	marker     dedupe.Marker
	inTx       TxRunner
	metrics    *metrics.Metrics
	logger     *slog.Logger

	// maxAttempts bounds how many dead-letter cycles an event may ride before
	// the key is marked failed. The bus owns backoff between cycles.
	maxAttempts int

	now func() time.Time
}

// Option configures Handlers.
type Option func(*Handlers)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handlers) { h.metrics = m }
}

// WithMaxAttempts overrides the dead-letter attempt bound.
func WithMaxAttempts(n int) Option {
	return func(h *Handlers) { h.maxAttempts = n }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

func New(
	keys keystore.Store,
	claims claimstore.Store,
	gateway ports.Gateway,
	eng *engine.Engine,
	publisher *events.Publisher,
	deadletter DeadLetter,
	marker dedupe.Marker,
	inTx TxRunner,
	logger *slog.Logger,
	opts ...Option,
) *Handlers {
	h := &Handlers{
		keys:        keys,
		claims:      claims,
		gateway:     gateway,
		engine:      eng,
		publisher:   publisher,
		deadletter:  deadletter,
		marker:      marker,
		inTx:        inTx,
		logger:      logger,
		maxAttempts: 5,
		now:         time.Now,
	}
	if h.inTx == nil {
		h.inTx = Passthrough
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// role selects which key row a phase re-reads for the event's value.
type role int

const (
	roleClaimant role = iota
	roleHolder
)

// apply is the shared phase pipeline. terminalRetry marks the dead-letter
// pass: a renewed transient failure past the attempt bound marks the key
// failed instead of republishing forever.
func (h *Handlers) apply(ctx context.Context, ev models.LifecycleEvent, r role, terminalRetry bool) (*keymodels.Key, error) {
	// Dead-letter cycles (attempt > 0) reprocess the same event ID on purpose,
	// so only first deliveries consult the marker.
	if ev.Attempt == 0 {
		first, err := h.marker.MarkProcessed(ctx, ev.EventID)
		if err != nil {
			// The marker is an optimization; fall through to the idempotent rules.
			h.logger.WarnContext(ctx, "dedupe marker unavailable", "event_id", ev.EventID, "error", err)
		} else if !first {
			h.metrics.IncDuplicate(string(ev.Kind))
			key, _ := h.loadKey(ctx, ev, r)
			return key, nil
		}
	}

	key, err := h.loadKey(ctx, ev, r)
	if err != nil {
		return nil, err
	}
	holder, _ := h.keys.FindHolderByValue(ctx, ev.KeyValue)
	claim, err := h.loadClaim(ctx, key)
	if err != nil {
		return nil, err
	}

	decision, err := h.engine.Decide(engine.Input{Key: key, Claim: claim, Event: ev, Holder: holder})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidState) {
			h.metrics.IncInvalid(string(ev.Kind), string(key.State))
		}
		return nil, err
	}
	if decision.NoOp {
		h.metrics.IncDuplicate(string(ev.Kind))
		return key, nil
	}

	claimant, err := h.persistPending(ctx, ev, key, holder, claim, decision)
	if err != nil {
		return nil, err
	}

	if decision.Action == engine.ActionNone {
		return key, nil
	}

	if claim == nil {
		claim, err = h.loadClaim(ctx, key)
		if err != nil {
			return nil, err
		}
	}

	if err := h.callGateway(ctx, ev, key, claim, decision); err != nil {
		var failure *ports.Failure
		switch {
		case errors.As(err, &failure) && failure.Transient() && !terminalRetry && ev.Attempt < h.maxAttempts:
			return key, h.routeDeadLetter(ctx, ev)
		case errors.As(err, &failure) && failure.Transient():
			// Retries exhausted: surface the outage as a terminal failure.
			return h.failKey(ctx, ev, key, claim, decision, failureCodeUnavailable,
				"external registry unavailable after retries")
		case errors.As(err, &failure):
			return h.failKey(ctx, ev, key, claim, decision, failure.Code, failure.Message)
		default:
			return nil, err
		}
	}

	return h.finalize(ctx, ev, key, claimant, claim, decision)
}

func (h *Handlers) loadKey(ctx context.Context, ev models.LifecycleEvent, r role) (*keymodels.Key, error) {
	key, err := h.lookupKey(ctx, ev, r)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "no key row for event")
		}
		return nil, err
	}
	return key, nil
}

func (h *Handlers) lookupKey(ctx context.Context, ev models.LifecycleEvent, r role) (*keymodels.Key, error) {
	if r == roleHolder {
		return h.keys.FindHolderByValue(ctx, ev.KeyValue)
	}
	key, err := h.keys.FindClaimantByValue(ctx, ev.KeyValue)
	if err == nil {
		return key, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		// First delivery of an opened event for a locally custodied key: the
		// claimant row does not exist yet, so the holder row drives the
		// decision.
		if ev.Kind == models.EventOpened {
			return h.keys.FindHolderByValue(ctx, ev.KeyValue)
		}
	}
	return nil, err
}

func (h *Handlers) loadClaim(ctx context.Context, key *keymodels.Key) (*models.Claim, error) {
	if key.HasActiveClaim() {
		claim, err := h.claims.Get(ctx, *key.ActiveClaimID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "active claim row missing")
			}
			return nil, err
		}
		return claim, nil
	}
	claim, err := h.claims.FindActiveByKey(ctx, key.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return claim, nil
}

// persistPending writes the decision's pending state, creating the claim (and
// the claimant-side row on the local-custodian open branch) in one
// transaction. Events whose decision needs no gateway call are finalized and
// emitted here as well. Returns the claimant row it created, if any.
func (h *Handlers) persistPending(
	ctx context.Context,
	ev models.LifecycleEvent,
	key *keymodels.Key,
	holder *keymodels.Key,
	claim *models.Claim,
	decision engine.Decision,
) (*keymodels.Key, error) {
	var claimant *keymodels.Key
	direct := decision.Action == engine.ActionNone

	err := h.inTx(ctx, func(ctx context.Context) error {
		if claim == nil {
			created, err := h.newClaim(ev, key, holder)
			if err != nil {
				return err
			}
			created.Status = decision.ClaimStatus
			if err := h.claims.Create(ctx, created); err != nil {
				return err
			}
			claim = created
		} else if direct && decision.ClaimStatus != "" && claim.Status != decision.ClaimStatus {
			claim.Status = decision.ClaimStatus
			if err := h.claims.Update(ctx, claim); err != nil {
				return err
			}
		}

		state := decision.PendingState
		if direct {
			state = decision.FinalState
		}
		if key.State != state || !key.HasActiveClaim() {
			key.State = state
			claimID := claim.ID
			key.ActiveClaimID = &claimID
			if err := h.keys.Update(ctx, key); err != nil {
				return err
			}
			h.metrics.IncTransition(string(ev.Kind), string(state))
		}

		if cp := decision.Counterpart; cp != nil {
			var err error
			claimant, err = h.applyCounterpart(ctx, ev, key, holder, claim, cp)
			if err != nil {
				return err
			}
		}

		if direct {
			if err := h.emit(ctx, ev, key, claim, decision.Event); err != nil {
				return err
			}
			if decision.Counterpart != nil && decision.Counterpart.Event != "" && claimant != nil {
				if err := h.emit(ctx, ev, claimant, claim, decision.Counterpart.Event); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimant, nil
}

func (h *Handlers) applyCounterpart(
	ctx context.Context,
	ev models.LifecycleEvent,
	key *keymodels.Key,
	holder *keymodels.Key,
	claim *models.Claim,
	cp *engine.CounterpartChange,
) (*keymodels.Key, error) {
	if cp.Create {
		claimID := claim.ID
		claimant := &keymodels.Key{
			ID:            id.NewKeyID(),
			Value:         ev.KeyValue,
			Kind:          key.Kind,
			State:         cp.State,
			ActiveClaimID: &claimID,
		}
		if err := h.keys.Create(ctx, claimant); err != nil {
			return nil, err
		}
		h.metrics.IncTransition(string(ev.Kind), string(cp.State))
		return claimant, nil
	}
	if cp.Holder && holder != nil && holder.State != cp.State {
		holder.State = cp.State
		if err := h.keys.Update(ctx, holder); err != nil {
			return nil, err
		}
		h.metrics.IncTransition(string(ev.Kind), string(cp.State))
	}
	return nil, nil
}

func (h *Handlers) newClaim(ev models.LifecycleEvent, key, holder *keymodels.Key) (*models.Claim, error) {
	claimID := id.NewClaimID()
	if ev.ClaimID != "" {
		parsed, err := id.ParseClaimID(ev.ClaimID)
		if err != nil {
			return nil, err
		}
		claimID = parsed
	}
	kind := ev.ClaimKind
	if kind == "" {
		kind = models.KindOwnership
	}
	reason := ev.Reason
	if reason == "" {
		reason = models.ReasonUserRequested
	}

	local := h.engine.Policy().LocalParticipant()
	claimer, custodian := local, ev.Participant
	if h.engine.Policy().Classify(ev, holder) == engine.BranchLocalCustodian {
		claimer, custodian = ev.Participant, local
	}

	now := h.now()
	windows := h.engine.Windows()
	return &models.Claim{
		ID:            claimID,
		KeyID:         key.ID,
		Kind:          kind,
		Claimer:       claimer,
		Custodian:     custodian,
		Reason:        reason,
		OpenedAt:      now,
		ResolutionDue: now.Add(windows.Resolution),
		CompletionDue: now.Add(windows.Completion),
	}, nil
}

func (h *Handlers) callGateway(
	ctx context.Context,
	ev models.LifecycleEvent,
	key *keymodels.Key,
	claim *models.Claim,
	decision engine.Decision,
) error {
	req := ports.ClaimRequest{
		ClaimID:   claim.ID,
		KeyValue:  key.Value,
		Kind:      claim.Kind,
		Claimer:   claim.Claimer,
		Custodian: claim.Custodian,
		Reason:    claim.Reason,
	}

	start := h.now()
	var err error
	switch decision.Action {
	case engine.ActionCreateClaim:
		err = h.gateway.CreateClaim(ctx, req)
	case engine.ActionConfirmClaim:
		err = h.gateway.ConfirmClaim(ctx, req)
	case engine.ActionCompleteClaim:
		err = h.gateway.CompleteClaim(ctx, req)
	case engine.ActionCancelClaim:
		err = h.gateway.CancelClaim(ctx, req)
	case engine.ActionCloseClaim:
		err = h.gateway.CloseClaim(ctx, req)
	case engine.ActionDenyClaim:
		err = h.gateway.DenyClaim(ctx, req)
	default:
		return fmt.Errorf("unknown gateway action %q", decision.Action)
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
		var failure *ports.Failure
		if errors.As(err, &failure) {
			outcome = string(failure.Kind)
		}
	}
	h.metrics.ObserveGateway(string(decision.Action), outcome, time.Since(start))
	return err
}

func (h *Handlers) routeDeadLetter(ctx context.Context, ev models.LifecycleEvent) error {
	ev.Attempt++
	if err := h.deadletter.Republish(ctx, ev); err != nil {
		return fmt.Errorf("republish to dead-letter: %w", err)
	}
	h.metrics.IncDeadLetter(string(ev.Kind))
	h.logger.WarnContext(ctx, "event routed to dead-letter",
		"event_id", ev.EventID,
		"event", string(ev.Kind),
		"key", ev.KeyValue,
		"attempt", ev.Attempt,
	)
	return nil
}

// finalize persists the post-call state and emits the domain event atomically.
func (h *Handlers) finalize(
	ctx context.Context,
	ev models.LifecycleEvent,
	key *keymodels.Key,
	claimant *keymodels.Key,
	claim *models.Claim,
	decision engine.Decision,
) (*keymodels.Key, error) {
	err := h.inTx(ctx, func(ctx context.Context) error {
		// A claim that just reached a terminal status releases the key's
		// active-claim slot.
		released := decision.ClaimStatus != "" && !decision.ClaimStatus.Active()
		if key.State != decision.FinalState || released {
			key.State = decision.FinalState
			if released {
				key.ActiveClaimID = nil
			}
			if err := h.keys.Update(ctx, key); err != nil {
				return err
			}
			h.metrics.IncTransition(string(ev.Kind), string(decision.FinalState))
		}
		if decision.ClaimStatus != "" && claim.Status != decision.ClaimStatus {
			claim.Status = decision.ClaimStatus
			if err := h.claims.Update(ctx, claim); err != nil {
				return err
			}
		}
		if err := h.emit(ctx, ev, key, claim, decision.Event); err != nil {
			return err
		}
		if cp := decision.Counterpart; cp != nil && cp.Event != "" && claimant != nil {
			if err := h.emit(ctx, ev, claimant, claim, cp.Event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// failKey lands a terminal registry rejection: the key moves to the rule's
// fail state carrying the translated failure, the claim leaves the active
// slot, and a claim-failed event surfaces the outcome.
func (h *Handlers) failKey(
	ctx context.Context,
	ev models.LifecycleEvent,
	key *keymodels.Key,
	claim *models.Claim,
	decision engine.Decision,
	code, message string,
) (*keymodels.Key, error) {
	failStatus := models.StatusCanceled
	if decision.FailState == keymodels.StateClaimClosed {
		failStatus = models.StatusClosed
	}

	err := h.inTx(ctx, func(ctx context.Context) error {
		key.State = decision.FailState
		key.Failed = &keymodels.Failure{Code: code, Message: message}
		key.ActiveClaimID = nil
		if err := h.keys.Update(ctx, key); err != nil {
			return err
		}
		h.metrics.IncTransition(string(ev.Kind), string(decision.FailState))

		if claim != nil && claim.Status.Active() {
			claim.Status = failStatus
			if err := h.claims.Update(ctx, claim); err != nil {
				return err
			}
		}
		return h.emit(ctx, ev, key, claim, models.DomainClaimFailed)
	})
	if err != nil {
		return nil, err
	}

	h.logger.ErrorContext(ctx, "claim ended in terminal failure",
		"event", string(ev.Kind),
		"key", key.Value,
		"state", string(key.State),
		"code", code,
	)
	return key, nil
}

func (h *Handlers) emit(ctx context.Context, ev models.LifecycleEvent, key *keymodels.Key, claim *models.Claim, eventType models.DomainEventType) error {
	if eventType == "" {
		return nil
	}
	event := models.DomainEvent{
		Type:        eventType,
		KeyID:       key.ID,
		KeyValue:    key.Value,
		KeyKind:     key.Kind,
		State:       key.State,
		Participant: ev.Participant,
		OccurredAt:  h.now(),
	}
	if claim != nil {
		event.ClaimID = claim.ID.String()
		event.ClaimKind = claim.Kind
	}
	if key.Failed != nil {
		event.FailedCode = key.Failed.Code
		event.FailedMsg = key.Failed.Message
	}
	return h.publisher.Emit(ctx, event)
}
