package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventPillsDispensed    = "dispenser.pills.dispensed"
	EventStockAlert        = "dispenser.stock.alert"
	EventMedicationCreated = "dispenser.medication.created"
	EventMedicationUpdated = "dispenser.medication.updated"
	EventMedicationDeleted = "dispenser.medication.deleted"
)

// Event is the envelope every message is wrapped in
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// PillsDispensedEvent is published after a device report was applied
type PillsDispensedEvent struct {
	BoxID     int    `json:"box_id"`
	Dispensed int    `json:"dispensed"`
	Remaining int    `json:"remaining"`
	Source    string `json:"source"` // "http" or "mqtt"
}

// StockAlertEvent is published when a dispense leaves a box low, critical or empty
type StockAlertEvent struct {
	BoxID          int    `json:"box_id"`
	MedicationName string `json:"medication_name"`
	Kind           string `json:"kind"`
	Remaining      int    `json:"remaining"`
}

// MedicationChangedEvent is published on operator add, update and delete
type MedicationChangedEvent struct {
	BoxID          int    `json:"box_id"`
	MedicationID   int    `json:"medication_id,omitempty"`
	MedicationName string `json:"medication_name,omitempty"`
	TotalPills     int    `json:"total_pills"`
}
