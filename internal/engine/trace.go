package engine

import (
	"time"

	"github.com/scrypster/resolver/pkg/types"
)

// TraceEventKind classifies each trace event by type.
type TraceEventKind string

const (
	// KindResolveStarted is emitted at the beginning of a resolution.
	KindResolveStarted TraceEventKind = "resolve_started"

	// KindTierMissed is emitted when a tier had no answer.
	KindTierMissed TraceEventKind = "tier_missed"

	// KindTierMatched is emitted when a tier produced the result.
	KindTierMatched TraceEventKind = "tier_matched"

	// KindTierFailed is emitted when a tier's store lookup failed.
	KindTierFailed TraceEventKind = "tier_failed"

	// KindResolveFinished is emitted once the cascade ends, matched or not.
	KindResolveFinished TraceEventKind = "resolve_finished"
)

// TraceEvent is a single structured event emitted during a resolution.
type TraceEvent struct {
	// Kind identifies the event type.
	Kind TraceEventKind `json:"kind"`

	// At is the wall-clock time the event was recorded.
	At time.Time `json:"at"`

	// Mention is the raw mention, populated in resolve_started.
	Mention string `json:"mention,omitempty"`

	// Scope is the caller scope, populated in resolve_started.
	Scope string `json:"scope,omitempty"`

	// Tier is set on per-tier events and on resolve_finished when matched.
	Tier types.MatchSource `json:"tier,omitempty"`

	// EntityID and Confidence describe a match.
	EntityID   string  `json:"entity_id,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`

	// Elapsed is the time spent in the tier, or in the whole cascade for
	// resolve_finished.
	Elapsed time.Duration `json:"elapsed,omitempty"`

	// Error is the failure message for tier_failed events.
	Error string `json:"error,omitempty"`
}

// Tracer receives trace events. It is called synchronously on the
// resolving goroutine and must be safe for concurrent use.
type Tracer func(TraceEvent)

// newTraceEvent is a convenience constructor that timestamps the event.
func newTraceEvent(kind TraceEventKind) TraceEvent {
	return TraceEvent{Kind: kind, At: time.Now()}
}

// EventResolveStarted creates a resolve_started trace event.
func EventResolveStarted(mention, scope string) TraceEvent {
	e := newTraceEvent(KindResolveStarted)
	e.Mention = mention
	e.Scope = scope
	return e
}

// EventTierMissed creates a tier_missed trace event.
func EventTierMissed(tier types.MatchSource, elapsed time.Duration) TraceEvent {
	e := newTraceEvent(KindTierMissed)
	e.Tier = tier
	e.Elapsed = elapsed
	return e
}

// EventTierMatched creates a tier_matched trace event.
func EventTierMatched(tier types.MatchSource, result *types.ResolutionResult, elapsed time.Duration) TraceEvent {
	e := newTraceEvent(KindTierMatched)
	e.Tier = tier
	e.Elapsed = elapsed
	if result != nil && result.Entity != nil {
		e.EntityID = result.Entity.ID
		e.Confidence = result.Confidence
	}
	return e
}

// EventTierFailed creates a tier_failed trace event.
func EventTierFailed(tier types.MatchSource, err error, elapsed time.Duration) TraceEvent {
	e := newTraceEvent(KindTierFailed)
	e.Tier = tier
	e.Elapsed = elapsed
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// EventResolveFinished creates a resolve_finished trace event. result may
// be nil.
func EventResolveFinished(result *types.ResolutionResult, elapsed time.Duration) TraceEvent {
	e := newTraceEvent(KindResolveFinished)
	e.Elapsed = elapsed
	if result != nil && result.Entity != nil {
		e.Tier = result.MatchSource
		e.EntityID = result.Entity.ID
		e.Confidence = result.Confidence
	}
	return e
}
