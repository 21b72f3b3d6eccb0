package main

import (
	"strings"
	"testing"
	"time"

	"github.com/talentdb/talent/internal/events"
)

func TestExtractEventMetadata_CandidateMerged(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]interface{}
		expected string
	}{
		{
			name: "all fields present",
			data: map[string]interface{}{
				"item_index":  3,
				"external_id": "ap-1",
				"matched_on":  "email_exact_match",
				"confidence":  0.9,
			},
			expected: "#3 | ap-1 | email | 90%",
		},
		{
			name: "tied merge",
			data: map[string]interface{}{
				"item_index": 0,
				"matched_on": "name_company_match",
				"confidence": 0.75,
				"tied":       2,
			},
			expected: "#0 | name_company | 75% | 2 tied",
		},
		{
			name:     "all fields missing",
			data:     map[string]interface{}{},
			expected: "#0 | 0%",
		},
		{
			name: "json numbers",
			data: map[string]interface{}{
				"item_index": float64(12),
				"matched_on": "linkedin_url_exact_match",
				"confidence": 0.95,
			},
			expected: "#12 | linkedin_url | 95%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &events.IngestEvent{
				Type:      events.EventTypeCandidateMerged,
				Data:      tt.data,
				Timestamp: time.Now(),
			}
			result := extractEventMetadata(event)
			if result != tt.expected {
				t.Errorf("extractEventMetadata() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestExtractEventMetadata_OtherTypes(t *testing.T) {
	hash := strings.Repeat("ab", 32)

	tests := []struct {
		name      string
		eventType events.EventType
		data      map[string]interface{}
		expected  string
	}{
		{
			name:      "created",
			eventType: events.EventTypeCandidateCreated,
			data:      map[string]interface{}{"item_index": 4, "external_id": "lx-9", "pool_size": 0},
			expected:  "#4 | lx-9 | pool 0",
		},
		{
			name:      "ingest failed",
			eventType: events.EventTypeCandidateIngestFailed,
			data:      map[string]interface{}{"item_index": 1, "stage": "normalize", "error": "invalid JSON record"},
			expected:  "#1 | normalize | invalid JSON record",
		},
		{
			name:      "embedding requested",
			eventType: events.EventTypeEmbeddingRequested,
			data:      map[string]interface{}{"reason": "significant_change", "content_hash": hash},
			expected:  "significant_change | abababababab",
		},
		{
			name:      "batch started with rate",
			eventType: events.EventTypeIngestBatchStarted,
			data:      map[string]interface{}{"item_count": 5, "concurrency": 4, "rate_per_sec": 2.5},
			expected:  "5 items | concurrency 4 | 2.5/s",
		},
		{
			name:      "batch completed",
			eventType: events.EventTypeIngestBatchCompleted,
			data: map[string]interface{}{
				"created_count": 3, "updated_count": 2, "failed_count": 1, "processing_time_ms": 2500,
			},
			expected: "+3 | =2 | ✗1 | 2.5s",
		},
		{
			name:      "batch interrupted",
			eventType: events.EventTypeIngestBatchCompleted,
			data:      map[string]interface{}{"processing_time_ms": 10, "error": "context canceled"},
			expected:  "+0 | =0 | ✗0 | 10ms | context canceled",
		},
		{
			name:      "cleanup with vacuum",
			eventType: events.EventTypeEventCleanupCompleted,
			data: map[string]interface{}{
				"events_deleted": 10, "events_remaining": 5, "processing_time_ms": 120, "vacuum_ran": true,
			},
			expected: "10 deleted | 5 remaining | 120ms | vacuum",
		},
		{
			name:      "nil data",
			eventType: events.EventTypeCandidateCreated,
			data:      nil,
			expected:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &events.IngestEvent{Type: tt.eventType, Data: tt.data, Timestamp: time.Now()}
			if result := extractEventMetadata(event); result != tt.expected {
				t.Errorf("extractEventMetadata() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestExtractEventMetadata_FromConstructor(t *testing.T) {
	event, err := events.NewCandidateIngestEvent("c1", "b1", "apollo", events.SeverityInfo, "Merged",
		events.CandidateIngestData{
			Action:     "updated",
			MatchedOn:  "apollo_id_match",
			Confidence: 0.85,
			PoolSize:   1,
			ItemIndex:  7,
			ExternalID: "ap-7",
		})
	if err != nil {
		t.Fatalf("NewCandidateIngestEvent failed: %v", err)
	}
	if got, want := extractEventMetadata(event), "#7 | ap-7 | apollo_id | 85%"; got != want {
		t.Errorf("extractEventMetadata() = %q, want %q", got, want)
	}
}

func TestGetEventEmoji(t *testing.T) {
	merged := &events.IngestEvent{Type: events.EventTypeCandidateMerged, Severity: events.SeverityInfo}
	tied := &events.IngestEvent{Type: events.EventTypeCandidateMerged, Severity: events.SeverityWarning}
	if getEventEmoji(merged) == getEventEmoji(tied) {
		t.Error("tied merges should stand out from clean merges")
	}
	unknown := &events.IngestEvent{Type: "other", Severity: events.SeverityCritical}
	if got := getEventEmoji(unknown); got != "🔥" {
		t.Errorf("getEventEmoji(critical) = %q", got)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in       string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abc", 2, "..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.expected {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.expected)
		}
	}
}

func TestFormatDurationMs(t *testing.T) {
	tests := []struct {
		ms       int
		expected string
	}{
		{0, "0ms"},
		{999, "999ms"},
		{1500, "1.5s"},
		{90000, "1.5m"},
	}
	for _, tt := range tests {
		if got := formatDurationMs(tt.ms); got != tt.expected {
			t.Errorf("formatDurationMs(%d) = %q, want %q", tt.ms, got, tt.expected)
		}
	}
}
