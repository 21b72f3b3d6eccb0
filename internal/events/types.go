package events

import (
	"time"
)

// EventType represents the kind of ingestion audit event.
type EventType string

const (
	// EventTypeCandidateCreated indicates no duplicate was found and a new record was created
	EventTypeCandidateCreated EventType = "candidate_created"
	// EventTypeCandidateMerged indicates the payload was merged into an existing record
	EventTypeCandidateMerged EventType = "candidate_merged"
	// EventTypeCandidateIngestFailed indicates normalization or the store failed for one item
	EventTypeCandidateIngestFailed EventType = "candidate_ingest_failed"
	// EventTypeEmbeddingRequested indicates the candidate needs a fresh search embedding
	EventTypeEmbeddingRequested EventType = "embedding_requested"

	// EventTypeIngestBatchStarted indicates a batch of source records started processing
	EventTypeIngestBatchStarted EventType = "ingest_batch_started"
	// EventTypeIngestBatchCompleted indicates a batch finished (successfully or not)
	EventTypeIngestBatchCompleted EventType = "ingest_batch_completed"

	// EventTypeEventCleanupCompleted indicates an audit retention cleanup finished
	EventTypeEventCleanupCompleted EventType = "event_cleanup_completed"
)

// IsValid checks if the event type value is known
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeCandidateCreated, EventTypeCandidateMerged, EventTypeCandidateIngestFailed,
		EventTypeEmbeddingRequested, EventTypeIngestBatchStarted, EventTypeIngestBatchCompleted,
		EventTypeEventCleanupCompleted:
		return true
	}
	return false
}

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates warning events (e.g. an ambiguous match)
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
	// SeverityCritical indicates critical events; kept longest by retention
	SeverityCritical EventSeverity = "critical"
)

// IsValid checks if the severity value is valid
func (s EventSeverity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// IngestEvent is one audit record written by ingestion callers.
type IngestEvent struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// CandidateID is the affected candidate; empty when the item failed before a record existed
	CandidateID string `json:"candidate_id,omitempty"`
	// BatchID groups events of one ingest run
	BatchID string `json:"batch_id,omitempty"`
	// Source is the originating system (apollo, loxo, cv_upload, manual)
	Source string `json:"source,omitempty"`
	// Severity indicates the importance level of the event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains event-specific structured data
	Data map[string]interface{} `json:"data"`
}

// CandidateIngestData is the payload of candidate_created and candidate_merged events.
type CandidateIngestData struct {
	// Action is "created" or "updated"
	Action string `json:"action"`
	// MatchedOn is the reason code of the winning match (empty on create)
	MatchedOn string `json:"matched_on,omitempty"`
	// Confidence is the winning match confidence (0 on create)
	Confidence float64 `json:"confidence"`
	// PoolSize is the number of candidates returned by the duplicate lookup
	PoolSize int `json:"pool_size"`
	// Tied is the number of other pool entries that shared the top confidence
	Tied int `json:"tied,omitempty"`
	// ItemIndex is the position of the source record in its batch
	ItemIndex int `json:"item_index"`
	// ExternalID is the source-system id of the record, if any
	ExternalID string `json:"external_id,omitempty"`
}

// CandidateIngestFailedData is the payload of candidate_ingest_failed events.
type CandidateIngestFailedData struct {
	ItemIndex  int    `json:"item_index"`
	ExternalID string `json:"external_id,omitempty"`
	Stage      string `json:"stage"` // "normalize" or "process"
	Error      string `json:"error"`
}

// EmbeddingRequestedData is the payload of embedding_requested events.
type EmbeddingRequestedData struct {
	// ContentHash is the SHA-256 of the text the embedding will be built from
	ContentHash string `json:"content_hash"`
	// Reason is "created" or "significant_change"
	Reason string `json:"reason"`
}

// IngestBatchStartedData is the payload of ingest_batch_started events.
type IngestBatchStartedData struct {
	ItemCount   int     `json:"item_count"`
	Concurrency int     `json:"concurrency"`
	RatePerSec  float64 `json:"rate_per_sec,omitempty"`
	DryRun      bool    `json:"dry_run,omitempty"`
}

// IngestBatchCompletedData is the payload of ingest_batch_completed events.
type IngestBatchCompletedData struct {
	TotalItems         int    `json:"total_items"`
	CreatedCount       int    `json:"created_count"`
	UpdatedCount       int    `json:"updated_count"`
	FailedCount        int    `json:"failed_count"`
	EmbeddingRequested int    `json:"embedding_requested"`
	ProcessingTimeMs   int64  `json:"processing_time_ms"`
	Success            bool   `json:"success"`
	Error              string `json:"error,omitempty"`
}

// EventCleanupCompletedData is the payload of event_cleanup_completed events.
type EventCleanupCompletedData struct {
	EventsDeleted      int    `json:"events_deleted"`
	TimeBasedDeleted   int    `json:"time_based_deleted"`
	GlobalLimitDeleted int    `json:"global_limit_deleted"`
	ProcessingTimeMs   int64  `json:"processing_time_ms"`
	EventsRemaining    int    `json:"events_remaining"`
	VacuumRan          bool   `json:"vacuum_ran,omitempty"`
	Success            bool   `json:"success"`
	Error              string `json:"error,omitempty"`
}

// EventFilter defines criteria for filtering events.
type EventFilter struct {
	// CandidateID filters events by candidate
	CandidateID string
	// BatchID filters events by ingest batch
	BatchID string
	// Type filters events by event type
	Type EventType
	// Severity filters events by severity level
	Severity EventSeverity
	// AfterTime filters events that occurred after this time
	AfterTime time.Time
	// BeforeTime filters events that occurred before this time
	BeforeTime time.Time
	// Limit limits the number of events returned
	Limit int
}

// Matches reports whether e satisfies the filter (Limit is ignored).
func (f EventFilter) Matches(e *IngestEvent) bool {
	if f.CandidateID != "" && e.CandidateID != f.CandidateID {
		return false
	}
	if f.BatchID != "" && e.BatchID != f.BatchID {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if !f.AfterTime.IsZero() && !e.Timestamp.After(f.AfterTime) {
		return false
	}
	if !f.BeforeTime.IsZero() && !e.Timestamp.Before(f.BeforeTime) {
		return false
	}
	return true
}
