package events

import (
	"encoding/json"
	"fmt"
)

// SetCandidateIngestData sets the Data field with CandidateIngestData in a type-safe way.
func (e *IngestEvent) SetCandidateIngestData(data CandidateIngestData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert CandidateIngestData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetCandidateIngestData retrieves CandidateIngestData from the Data field.
func (e *IngestEvent) GetCandidateIngestData() (*CandidateIngestData, error) {
	var data CandidateIngestData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse CandidateIngestData: %w", err)
	}
	return &data, nil
}

// SetCandidateIngestFailedData sets the Data field with CandidateIngestFailedData in a type-safe way.
func (e *IngestEvent) SetCandidateIngestFailedData(data CandidateIngestFailedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert CandidateIngestFailedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetCandidateIngestFailedData retrieves CandidateIngestFailedData from the Data field.
func (e *IngestEvent) GetCandidateIngestFailedData() (*CandidateIngestFailedData, error) {
	var data CandidateIngestFailedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse CandidateIngestFailedData: %w", err)
	}
	return &data, nil
}

// SetEmbeddingRequestedData sets the Data field with EmbeddingRequestedData in a type-safe way.
func (e *IngestEvent) SetEmbeddingRequestedData(data EmbeddingRequestedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert EmbeddingRequestedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetEmbeddingRequestedData retrieves EmbeddingRequestedData from the Data field.
func (e *IngestEvent) GetEmbeddingRequestedData() (*EmbeddingRequestedData, error) {
	var data EmbeddingRequestedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse EmbeddingRequestedData: %w", err)
	}
	return &data, nil
}

// SetIngestBatchStartedData sets the Data field with IngestBatchStartedData in a type-safe way.
func (e *IngestEvent) SetIngestBatchStartedData(data IngestBatchStartedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert IngestBatchStartedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetIngestBatchStartedData retrieves IngestBatchStartedData from the Data field.
func (e *IngestEvent) GetIngestBatchStartedData() (*IngestBatchStartedData, error) {
	var data IngestBatchStartedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse IngestBatchStartedData: %w", err)
	}
	return &data, nil
}

// SetIngestBatchCompletedData sets the Data field with IngestBatchCompletedData in a type-safe way.
func (e *IngestEvent) SetIngestBatchCompletedData(data IngestBatchCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert IngestBatchCompletedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetIngestBatchCompletedData retrieves IngestBatchCompletedData from the Data field.
func (e *IngestEvent) GetIngestBatchCompletedData() (*IngestBatchCompletedData, error) {
	var data IngestBatchCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse IngestBatchCompletedData: %w", err)
	}
	return &data, nil
}

// SetEventCleanupCompletedData sets the Data field with EventCleanupCompletedData in a type-safe way.
func (e *IngestEvent) SetEventCleanupCompletedData(data EventCleanupCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert EventCleanupCompletedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetEventCleanupCompletedData retrieves EventCleanupCompletedData from the Data field.
func (e *IngestEvent) GetEventCleanupCompletedData() (*EventCleanupCompletedData, error) {
	var data EventCleanupCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse EventCleanupCompletedData: %w", err)
	}
	return &data, nil
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
