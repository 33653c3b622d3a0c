// Package events durably distributes the orchestrator's per-request event
// stream (pkg/orchestrator's Progress/Clarification/Result/Error events,
// spec.md §4.7) across process boundaries via PostgreSQL LISTEN/NOTIFY —
// the same persist-then-NOTIFY mechanism the teacher used for its
// session/timeline event fan-out, retargeted from session/stage/chat
// events to the orchestrator's four event kinds.
//
// HTTP/WebSocket transport is out of scope for this module (spec.md §1
// Non-goals, DESIGN.md). What remains in scope is the durable channel the
// orchestrator writes into and the in-process Broker a transport layer
// would read from, per SPEC_FULL.md §9's "explicit event-channel
// abstraction" design note.
package events

import "github.com/google/uuid"

// Persisted event types, one per orchestrator.EventKind.
const (
	EventTypeProgress      = "orchestrator.progress"
	EventTypeClarification = "orchestrator.clarification"
	EventTypeResult        = "orchestrator.result"
	EventTypeError         = "orchestrator.error"
)

// ConversationChannel returns the NOTIFY/Broker channel name for one
// conversation's events. Format: "conversation:{conversation_id}".
func ConversationChannel(conversationID uuid.UUID) string {
	return "conversation:" + conversationID.String()
}
