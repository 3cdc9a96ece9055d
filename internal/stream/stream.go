// Package stream defines the ordered event contract between the workflow
// runtime and the HTTP edge: a Sink/Event/Base pattern narrowed to the
// event kinds progress reporting needs (node lifecycle, retry, and the
// four terminal kinds).
package stream

import "context"

// EventType enumerates the progress and terminal event kinds a single
// execution can emit.
type EventType string

const (
	// EventNodeStart marks that the runtime is about to invoke a node.
	EventNodeStart EventType = "node_start"
	// EventNodeEnd marks that a node returned, successfully or not.
	EventNodeEnd EventType = "node_end"
	// EventRetry marks that the runtime is routing back to a retry-source
	// node after a retryable failure.
	EventRetry EventType = "retry"
	// EventCacheHit is terminal: the requested artifact was already cached.
	EventCacheHit EventType = "cache_hit"
	// EventComplete is terminal: the execution produced its artifact.
	EventComplete EventType = "complete"
	// EventError is terminal: the execution failed.
	EventError EventType = "error"
	// EventCancelled is terminal: the execution was cancelled.
	EventCancelled EventType = "cancelled"
)

// Terminal reports whether t ends an execution's event stream.
func (t EventType) Terminal() bool {
	switch t {
	case EventCacheHit, EventComplete, EventError, EventCancelled:
		return true
	default:
		return false
	}
}

// Event is one item delivered through a Sink. Concrete event types embed
// Base to satisfy the interface.
type Event interface {
	Type() EventType
	SessionID() string
	Payload() any
}

// Base provides the shared Type/SessionID/Payload implementation so concrete
// event types only need to declare their typed Data field.
type Base struct {
	t EventType
	s string
	p any
}

// NewBase constructs a Base with the given type, session id, and payload.
func NewBase(t EventType, sessionID string, payload any) Base {
	return Base{t: t, s: sessionID, p: payload}
}

// Type implements Event.
func (b Base) Type() EventType { return b.t }

// SessionID implements Event.
func (b Base) SessionID() string { return b.s }

// Payload implements Event.
func (b Base) Payload() any { return b.p }

type (
	// NodeStart reports that a node is about to run.
	NodeStart struct {
		Base
		Data NodeStartPayload
	}
	// NodeStartPayload is the wire payload for NodeStart.
	NodeStartPayload struct {
		Node       string `json:"node"`
		StepNumber int    `json:"step_number"`
		TotalSteps int    `json:"total_steps"`
	}

	// NodeEnd reports that a node returned.
	NodeEnd struct {
		Base
		Data NodeEndPayload
	}
	// NodeEndPayload is the wire payload for NodeEnd.
	NodeEndPayload struct {
		Node       string `json:"node"`
		StepNumber int    `json:"step_number"`
		TotalSteps int    `json:"total_steps"`
		DurationMs int64  `json:"duration_ms"`
		Error      string `json:"error,omitempty"`
	}

	// Retry reports that the runtime is re-running the retry-source node.
	Retry struct {
		Base
		Data RetryPayload
	}
	// RetryPayload is the wire payload for Retry.
	RetryPayload struct {
		FromNode   string `json:"from_node"`
		ToNode     string `json:"to_node"`
		Attempt    int    `json:"attempt"`
		MaxRetries int    `json:"max_retries"`
	}

	// CacheHit is the terminal event for a request served from cache.
	CacheHit struct {
		Base
		Data CacheHitPayload
	}
	// CacheHitPayload is the wire payload for CacheHit.
	CacheHitPayload struct {
		FilePath    string  `json:"file_path"`
		DownloadURL string  `json:"download_url"`
		ContentB64  *string `json:"content_b64,omitempty"`
	}

	// Complete is the terminal event for a successful execution.
	Complete struct {
		Base
		Data CompletePayload
	}
	// CompletePayload is the wire payload for Complete.
	CompletePayload struct {
		FilePath    string         `json:"file_path"`
		DownloadURL string         `json:"download_url"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}

	// Error is the terminal event for a failed execution.
	Error struct {
		Base
		Data ErrorPayload
	}
	// ErrorPayload is the wire payload for Error.
	ErrorPayload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Step    string `json:"step,omitempty"`
	}

	// Cancelled is the terminal event for a cancelled execution.
	Cancelled struct {
		Base
		Data CancelledPayload
	}
	// CancelledPayload is the wire payload for Cancelled.
	CancelledPayload struct{}
)

// Sink delivers events to a transport (SSE, tests). Implementations must be
// safe for the runtime to call from a single goroutine per execution; the
// dispatcher owns exactly one Sink per request.
type Sink interface {
	// Emit publishes event, blocking under backpressure but never dropping it.
	Emit(ctx context.Context, event Event) error
	// Close releases resources owned by the sink. Idempotent.
	Close(ctx context.Context) error
}
