package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/talentdb/talent/internal/events"
)

// displayActivityEvent formats and prints a single event with consistent two-line format
func displayActivityEvent(event *events.IngestEvent) {
	emoji := getEventEmoji(event)
	severityColor := getSeverityColor(event.Severity)

	timestamp := event.Timestamp.Local().Format("15:04:05")

	subject := event.CandidateID
	if subject == "" {
		subject = event.Source
	}
	subjectColor := color.New(color.FgGreen)
	typeColor := color.New(color.FgMagenta)

	// Line 1: emoji + [timestamp] + candidate + event_type: message
	maxMessageLen := 60 - len(subject) - len(string(event.Type))
	message := truncateString(event.Message, maxMessageLen)

	fmt.Printf("%s [%s] %s %s: %s\n",
		emoji,
		timestamp,
		subjectColor.Sprint(subject),
		typeColor.Sprint(event.Type),
		severityColor.Sprint(message),
	)

	// Line 2: key metadata fields, pipe-separated
	metadata := extractEventMetadata(event)
	if len(metadata) > 0 {
		gray := color.New(color.FgHiBlack)
		fmt.Printf("  %s\n", gray.Sprint(metadata))
	} else {
		fmt.Println()
	}
}

// getEventEmoji returns the appropriate emoji for each event type
func getEventEmoji(event *events.IngestEvent) string {
	switch event.Type {
	case events.EventTypeCandidateCreated:
		return "✨"
	case events.EventTypeCandidateMerged:
		if event.Severity == events.SeverityWarning {
			return "🔀"
		}
		return "🎯"
	case events.EventTypeCandidateIngestFailed:
		return "🚫"
	case events.EventTypeEmbeddingRequested:
		return "🧠"
	case events.EventTypeIngestBatchStarted, events.EventTypeIngestBatchCompleted:
		return "📦"
	case events.EventTypeEventCleanupCompleted:
		return "🧹"
	}

	switch event.Severity {
	case events.SeverityInfo:
		return "ℹ️"
	case events.SeverityWarning:
		return "⚠️"
	case events.SeverityError:
		return "❌"
	case events.SeverityCritical:
		return "🔥"
	default:
		return "•"
	}
}

// getSeverityColor returns the appropriate color for a severity level
func getSeverityColor(severity events.EventSeverity) *color.Color {
	switch severity {
	case events.SeverityInfo:
		return color.New(color.FgCyan)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	case events.SeverityError:
		return color.New(color.FgRed)
	case events.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}

// extractEventMetadata extracts the key data fields for each event type.
// Returns a pipe-separated string truncated to fit ~70 columns.
func extractEventMetadata(event *events.IngestEvent) string {
	data := event.Data
	if data == nil {
		return ""
	}

	var fields []string
	switch event.Type {
	case events.EventTypeCandidateCreated:
		fields = append(fields,
			fmt.Sprintf("#%d", getIntField(data, "item_index", 0)),
			getStringField(data, "external_id", ""),
			fmt.Sprintf("pool %d", getIntField(data, "pool_size", 0)),
		)

	case events.EventTypeCandidateMerged:
		fields = append(fields,
			fmt.Sprintf("#%d", getIntField(data, "item_index", 0)),
			getStringField(data, "external_id", ""),
			shortReason(getStringField(data, "matched_on", "")),
			fmt.Sprintf("%.0f%%", getFloatField(data, "confidence", 0)*100),
		)
		if tied := getIntField(data, "tied", 0); tied > 0 {
			fields = append(fields, fmt.Sprintf("%d tied", tied))
		}

	case events.EventTypeCandidateIngestFailed:
		fields = append(fields,
			fmt.Sprintf("#%d", getIntField(data, "item_index", 0)),
			getStringField(data, "external_id", ""),
			getStringField(data, "stage", ""),
			getStringField(data, "error", ""),
		)

	case events.EventTypeEmbeddingRequested:
		hash := getStringField(data, "content_hash", "")
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fields = append(fields, getStringField(data, "reason", ""), hash)

	case events.EventTypeIngestBatchStarted:
		fields = append(fields,
			fmt.Sprintf("%d items", getIntField(data, "item_count", 0)),
			fmt.Sprintf("concurrency %d", getIntField(data, "concurrency", 0)),
		)
		if rate := getFloatField(data, "rate_per_sec", 0); rate > 0 {
			fields = append(fields, fmt.Sprintf("%.1f/s", rate))
		}

	case events.EventTypeIngestBatchCompleted:
		fields = append(fields,
			fmt.Sprintf("+%d", getIntField(data, "created_count", 0)),
			fmt.Sprintf("=%d", getIntField(data, "updated_count", 0)),
			fmt.Sprintf("✗%d", getIntField(data, "failed_count", 0)),
			formatDurationMs(getIntField(data, "processing_time_ms", 0)),
		)
		if errMsg := getStringField(data, "error", ""); errMsg != "" {
			fields = append(fields, errMsg)
		}

	case events.EventTypeEventCleanupCompleted:
		fields = append(fields,
			fmt.Sprintf("%d deleted", getIntField(data, "events_deleted", 0)),
			fmt.Sprintf("%d remaining", getIntField(data, "events_remaining", 0)),
			formatDurationMs(getIntField(data, "processing_time_ms", 0)),
		)
		if getBoolField(data, "vacuum_ran", false) {
			fields = append(fields, "vacuum")
		}
	}

	return truncateString(joinFields(fields), 70)
}

// shortReason drops the _exact_match/_match suffix of a reason code
func shortReason(reason string) string {
	return strings.TrimSuffix(strings.TrimSuffix(reason, "_match"), "_exact")
}

// Helper functions to safely extract typed fields from event data
func getStringField(data map[string]interface{}, key, defaultValue string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return defaultValue
}

func getIntField(data map[string]interface{}, key string, defaultValue int) int {
	if val, ok := data[key].(int); ok {
		return val
	}
	if val, ok := data[key].(float64); ok {
		return int(val)
	}
	return defaultValue
}

func getFloatField(data map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := data[key].(float64); ok {
		return val
	}
	if val, ok := data[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

func getBoolField(data map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := data[key].(bool); ok {
		return val
	}
	return defaultValue
}

// formatDurationMs formats milliseconds into a human-readable duration
func formatDurationMs(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%.1fm", float64(ms)/60000)
}

// joinFields joins non-empty metadata fields with " | "
func joinFields(fields []string) string {
	nonEmpty := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	return strings.Join(nonEmpty, " | ")
}

// truncateString truncates a string to maxLen, adding "..." if needed
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
