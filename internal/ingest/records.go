package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// ReadRecords reads source records from r. The input may be one JSON array,
// a single JSON object (pretty-printed or not), or JSON Lines. Blank lines are
// skipped. JSON Lines are not validated here so one malformed record fails on
// its own during ingestion.
func ReadRecords(r io.Reader) ([]json.RawMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decoding JSON array: %w", err)
		}
		return records, nil
	}
	if json.Valid(data) {
		return []json.RawMessage{data}, nil
	}

	var records []json.RawMessage
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		records = append(records, json.RawMessage(line))
	}
	return records, nil
}
