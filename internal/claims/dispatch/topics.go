package dispatch

// Phase topics consumed from the message bus. Messages are keyed by the key's
// business identifier so every event for one key rides the same partition in
// order.
const (
	TopicOpened     = "keys.claims.opened"
	TopicWaiting    = "keys.claims.waiting"
	TopicConfirming = "keys.claims.confirming"
	TopicCompleting = "keys.claims.completing"
	TopicCanceling  = "keys.claims.canceling"
	TopicClosing    = "keys.claims.closing"
	TopicDenied     = "keys.claims.denied"

	// TopicDeadLetter carries events whose registry call failed transiently;
	// the bus re-delivers them with its own backoff.
	TopicDeadLetter = "keys.claims.deadletter"

	// TopicDomainEvents is the outbound channel drained from the outbox.
	TopicDomainEvents = "keys.events"
)

// PhaseTopics lists the inbound topics in consumption order.
func PhaseTopics() []string {
	return []string{
		TopicOpened,
		TopicWaiting,
		TopicConfirming,
		TopicCompleting,
		TopicCanceling,
		TopicClosing,
		TopicDenied,
	}
}
