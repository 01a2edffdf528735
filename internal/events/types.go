// Package events provides event management functionality.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents different event types
type EventType string

const (
	NavsImported    EventType = "NAVS_IMPORTED"
	ReportGenerated EventType = "REPORT_GENERATED"
	ReportPublished EventType = "REPORT_PUBLISHED"
	ErrorOccurred   EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type the service emits.
var AllTypes = []EventType{NavsImported, ReportGenerated, ReportPublished, ErrorOccurred}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// GetTypedData converts the Data map to the EventData type registered for
// the event's type. Returns nil for unknown types or undecodable data.
func (e *Event) GetTypedData() EventData {
	if e.Data == nil {
		return nil
	}

	var data EventData
	switch e.Type {
	case NavsImported:
		data = &NavsImportedData{}
	case ReportGenerated:
		data = &ReportGeneratedData{}
	case ReportPublished:
		data = &ReportPublishedData{}
	case ErrorOccurred:
		data = &ErrorEventData{}
	default:
		return nil
	}

	if err := convertMapToStruct(e.Data, data); err != nil {
		return nil
	}
	return data
}

func convertMapToStruct(m map[string]interface{}, v interface{}) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, v)
}
