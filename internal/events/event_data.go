package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// NavsImportedData contains data for NavsImported events
type NavsImportedData struct {
	ImportID    string `json:"import_id"`
	Source      string `json:"source"`
	Rows        int    `json:"rows"`
	Instruments int    `json:"instruments"`
	FilledGaps  int    `json:"filled_gaps"`
	DroppedRows int    `json:"dropped_rows"`
}

// EventType returns the event type for NavsImportedData
func (d *NavsImportedData) EventType() EventType {
	return NavsImported
}

// ReportGeneratedData contains data for ReportGenerated events
type ReportGeneratedData struct {
	RunID          string `json:"run_id"`
	Fingerprint    string `json:"fingerprint"`
	Instruments    int    `json:"instruments"`
	Rows           int    `json:"rows"`
	Cached         bool   `json:"cached"`
	Recommendation string `json:"recommendation,omitempty"`
}

// EventType returns the event type for ReportGeneratedData
func (d *ReportGeneratedData) EventType() EventType {
	return ReportGenerated
}

// ReportPublishedData contains data for ReportPublished events
type ReportPublishedData struct {
	RunID    string `json:"run_id"`
	Key      string `json:"key"`
	Location string `json:"location"`
	Bytes    int64  `json:"bytes"`
}

// EventType returns the event type for ReportPublishedData
func (d *ReportPublishedData) EventType() EventType {
	return ReportPublished
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
