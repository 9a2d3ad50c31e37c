// Package engine holds the claim lifecycle decision logic. The engine is a
// pure function of (key, claim, event): it computes the next key state, the
// registry call to issue, and the domain event to emit, but performs no I/O
// itself. Handlers own loading, persistence, the gateway call and publishing.
package engine

import (
	"time"

	"keybridge/internal/claims/models"
	keymodels "keybridge/internal/keys/models"
	id "keybridge/pkg/domain"
	dErrors "keybridge/pkg/domain-errors"
)

// Action names the registry gateway call a decision requires.
type Action string

const (
	ActionNone          Action = ""
	ActionCreateClaim   Action = "create_claim"
	ActionConfirmClaim  Action = "confirm_claim"
	ActionCompleteClaim Action = "complete_claim"
	ActionCancelClaim   Action = "cancel_claim"
	ActionCloseClaim    Action = "close_claim"
	ActionDenyClaim     Action = "deny_claim"
)

// CounterpartChange instructs the handler to touch the other key involved in
// a local-custodian claim: the claimant-side row it must create on open, or
// the custodied row it must move when a claim resolves against the holder.
type CounterpartChange struct {
	State keymodels.KeyState
	Event models.DomainEventType
	// Create means the handler materializes a new claimant-side key row in the
	// given state rather than updating an existing one.
	Create bool
	// Holder means the change applies to the locally custodied row.
	Holder bool
}

// Decision is the engine's verdict for one (key, claim, event) triple.
//
// The handler persists PendingState, issues Action (if any), then persists
// FinalState and emits Event. A crash between persistence and the gateway call
// is safe: re-delivery finds the key in PendingState, and the matching rule
// re-issues the same call.
type Decision struct {
	// NoOp marks an idempotent re-delivery: no persistence, no gateway call,
	// no event.
	NoOp bool

	PendingState keymodels.KeyState
	FinalState   keymodels.KeyState
	// FailState is persisted instead of FinalState when the gateway rejects
	// the call terminally.
	FailState keymodels.KeyState

	Action Action
	Event  models.DomainEventType

	// ClaimStatus is the claim's status once the decision lands ("" leaves the
	// claim untouched).
	ClaimStatus models.ClaimStatus

	Counterpart *CounterpartChange
}

// OpenBranch classifies a claim-opened event for this participant.
type OpenBranch int

const (
	// BranchSelfService: this participant opens the claim on behalf of its own
	// user, so it must call createClaim at the registry.
	BranchSelfService OpenBranch = iota
	// BranchLocalCustodian: the key under claim is custodied here; the local
	// holder must confirm or lose the key.
	BranchLocalCustodian
)

// Policy decides the local-vs-remote custodian branch for claim-opened events.
// The default implementation compares participants and the presence of a
// locally custodied key; deployments with richer routing data can swap it.
type Policy interface {
	Classify(ev models.LifecycleEvent, holder *keymodels.Key) OpenBranch
	// LocalParticipant is this deployment's routing code.
	LocalParticipant() id.ParticipantID
}

// ParticipantPolicy is the default Policy: a claim opened by a participant
// other than ours against a key we custody is the local-custodian branch;
// everything else is self-service.
type ParticipantPolicy struct {
	Local id.ParticipantID
}

func (p ParticipantPolicy) Classify(ev models.LifecycleEvent, holder *keymodels.Key) OpenBranch {
	if holder != nil && ev.Participant != p.Local {
		return BranchLocalCustodian
	}
	return BranchSelfService
}

func (p ParticipantPolicy) LocalParticipant() id.ParticipantID { return p.Local }

// Windows are the time-boxed claim phases enforced by the registry; the engine
// stamps them on new claims so handlers and operators can see the deadlines.
type Windows struct {
	Resolution time.Duration
	Completion time.Duration
}

// DefaultWindows mirrors the directory's published resolution and completion
// windows.
func DefaultWindows() Windows {
	return Windows{Resolution: 7 * 24 * time.Hour, Completion: 14 * 24 * time.Hour}
}

// Input bundles everything a transition rule may consult. Holder is the
// locally custodied row for the event's key value, nil when none exists; it is
// only read by the opened and confirming rules.
type Input struct {
	Key    *keymodels.Key
	Claim  *models.Claim
	Event  models.LifecycleEvent
	Holder *keymodels.Key
}

// Engine evaluates lifecycle events against the transition table.
type Engine struct {
	policy  Policy
	windows Windows
}

func New(policy Policy, windows Windows) *Engine {
	if windows.Resolution == 0 {
		windows = DefaultWindows()
	}
	return &Engine{policy: policy, windows: windows}
}

// Windows exposes the configured claim windows for handlers building claims.
func (e *Engine) Windows() Windows { return e.windows }

// Policy exposes the custodian policy for handlers classifying opens.
func (e *Engine) Policy() Policy { return e.policy }

type transitionKey struct {
	state keymodels.KeyState
	event models.EventKind
}

type rule func(e *Engine, in Input) (Decision, error)

// Decide applies the transition table. Events arriving against a state with no
// table entry are a protocol desync: they fail with an invalid-state error and
// leave both entities untouched.
func (e *Engine) Decide(in Input) (Decision, error) {
	if in.Key == nil {
		return Decision{}, dErrors.New(dErrors.CodeNotFound, "key is required")
	}
	r, ok := transitions[transitionKey{state: in.Key.State, event: in.Event.Kind}]
	if !ok {
		return Decision{}, dErrors.Newf(dErrors.CodeInvalidState,
			"event %s is not legal for key %s in state %s", in.Event.Kind, in.Key.ID, in.Key.State)
	}
	return r(e, in)
}
