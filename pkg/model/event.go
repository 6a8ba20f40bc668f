package model

import "time"

// EventType enumerates the audit-log event kinds (spec §3).
type EventType string

const (
	EventMemoryWrite    EventType = "memory_write"
	EventMemoryRead     EventType = "memory_read"
	EventMemoryDelete   EventType = "memory_delete"
	EventMemoryShare    EventType = "memory_share"
	EventCheckpoint     EventType = "checkpoint"
	EventBranch         EventType = "branch"
	EventMerge          EventType = "merge"
	EventUserMessage    EventType = "user_message"
	EventAssistantMsg   EventType = "assistant_message"
	EventToolCall       EventType = "tool_call"
	EventToolResult     EventType = "tool_result"
	EventError          EventType = "error"
	EventRetrievalQuery  EventType = "retrieval_query"
	EventRetrievalResult EventType = "retrieval_result"
	EventDecision       EventType = "decision"
)

// AgentEvent is an append-only audit entry (spec §3). Rows are never
// updated or deleted after insert; storage backends enforce this at the
// schema level where possible.
type AgentEvent struct {
	ID            string
	AgentID       string
	ThreadID      string
	RunID         string
	ParentEventID string
	EventType     EventType
	Payload       map[string]any

	// Optional telemetry, populated by OTLP ingestion or the LLM client.
	TraceID      string
	SpanID       string
	Model        string
	TokensInput  int
	TokensOutput int
	LatencyMs    int64
	CostUSD      float64

	Timestamp   time.Time
	LogicalClock int64
	ContentHash [32]byte
	PrevHash    [32]byte
	HasPrevHash bool
	Embedding   []float32
}
