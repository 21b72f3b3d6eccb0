package events

import (
	"time"

	"github.com/google/uuid"
)

func newEvent(typ EventType, candidateID, batchID, source string, severity EventSeverity, message string) *IngestEvent {
	return &IngestEvent{
		ID:          uuid.New().String(),
		Type:        typ,
		Timestamp:   time.Now(),
		CandidateID: candidateID,
		BatchID:     batchID,
		Source:      source,
		Severity:    severity,
		Message:     message,
	}
}

// NewCandidateIngestEvent creates a candidate_created or candidate_merged event,
// chosen by data.Action.
func NewCandidateIngestEvent(candidateID, batchID, source string, severity EventSeverity, message string, data CandidateIngestData) (*IngestEvent, error) {
	typ := EventTypeCandidateCreated
	if data.Action == "updated" {
		typ = EventTypeCandidateMerged
	}
	event := newEvent(typ, candidateID, batchID, source, severity, message)
	if err := event.SetCandidateIngestData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewCandidateIngestFailedEvent creates a candidate_ingest_failed event.
func NewCandidateIngestFailedEvent(batchID, source, message string, data CandidateIngestFailedData) (*IngestEvent, error) {
	event := newEvent(EventTypeCandidateIngestFailed, "", batchID, source, SeverityError, message)
	if err := event.SetCandidateIngestFailedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewEmbeddingRequestedEvent creates an embedding_requested event.
func NewEmbeddingRequestedEvent(candidateID, batchID, source string, data EmbeddingRequestedData) (*IngestEvent, error) {
	event := newEvent(EventTypeEmbeddingRequested, candidateID, batchID, source, SeverityInfo,
		"Embedding refresh requested ("+data.Reason+")")
	if err := event.SetEmbeddingRequestedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewIngestBatchStartedEvent creates an ingest_batch_started event.
func NewIngestBatchStartedEvent(batchID, source, message string, data IngestBatchStartedData) (*IngestEvent, error) {
	event := newEvent(EventTypeIngestBatchStarted, "", batchID, source, SeverityInfo, message)
	if err := event.SetIngestBatchStartedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewIngestBatchCompletedEvent creates an ingest_batch_completed event. Severity
// is raised to warning when any item failed.
func NewIngestBatchCompletedEvent(batchID, source, message string, data IngestBatchCompletedData) (*IngestEvent, error) {
	severity := SeverityInfo
	if data.FailedCount > 0 {
		severity = SeverityWarning
	}
	if !data.Success {
		severity = SeverityError
	}
	event := newEvent(EventTypeIngestBatchCompleted, "", batchID, source, severity, message)
	if err := event.SetIngestBatchCompletedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewEventCleanupCompletedEvent creates an event_cleanup_completed event.
func NewEventCleanupCompletedEvent(message string, data EventCleanupCompletedData) (*IngestEvent, error) {
	severity := SeverityInfo
	if !data.Success {
		severity = SeverityError
	}
	event := newEvent(EventTypeEventCleanupCompleted, "", "", "", severity, message)
	if err := event.SetEventCleanupCompletedData(data); err != nil {
		return nil, err
	}
	return event, nil
}
