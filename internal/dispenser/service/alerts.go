package service

import (
	"fmt"

	"github.com/pillbox/pillbox-backend/internal/dispenser/repository"
)

// Stock thresholds, inclusive
const (
	CriticalThreshold = 5
	LowThreshold      = 10
)

// AlertKind is the severity of a stock alert
type AlertKind string

const (
	AlertNone     AlertKind = ""
	AlertEmpty    AlertKind = "empty"
	AlertCritical AlertKind = "critical"
	AlertWarning  AlertKind = "warning"
)

// Alert is a derived stock notice for one box. It is never persisted.
type Alert struct {
	Kind           AlertKind `json:"kind"`
	BoxID          int       `json:"box_id"`
	MedicationName string    `json:"medication_name"`
	Count          int       `json:"count"`
}

// Title is the headline shown in the alert panel
func (a Alert) Title() string {
	switch a.Kind {
	case AlertEmpty:
		return fmt.Sprintf("Box %d is Empty", a.BoxID)
	case AlertCritical:
		return fmt.Sprintf("Critical Stock Alert - Box %d", a.BoxID)
	default:
		return fmt.Sprintf("Low Stock Warning - Box %d", a.BoxID)
	}
}

// Message is the detail line under the title
func (a Alert) Message() string {
	switch a.Kind {
	case AlertEmpty:
		return a.MedicationName + " - Refill immediately!"
	case AlertCritical:
		return fmt.Sprintf("%s - Only %d pills remaining", a.MedicationName, a.Count)
	default:
		return fmt.Sprintf("%s - %d pills remaining", a.MedicationName, a.Count)
	}
}

// KindFor maps a remaining pill count to its alert kind
func KindFor(total int) AlertKind {
	switch {
	case total <= 0:
		return AlertEmpty
	case total <= CriticalThreshold:
		return AlertCritical
	case total <= LowThreshold:
		return AlertWarning
	default:
		return AlertNone
	}
}

// StockLevel is the per-row badge label
type StockLevel string

const (
	LevelOK       StockLevel = "OK"
	LevelLow      StockLevel = "LOW"
	LevelCritical StockLevel = "CRITICAL"
	LevelEmpty    StockLevel = "EMPTY"
)

// LevelFor maps a remaining pill count to its badge
func LevelFor(total int) StockLevel {
	switch KindFor(total) {
	case AlertEmpty:
		return LevelEmpty
	case AlertCritical:
		return LevelCritical
	case AlertWarning:
		return LevelLow
	default:
		return LevelOK
	}
}

// Classify derives alerts for every box at or below the low threshold,
// preserving input order.
func Classify(meds []*repository.Medication) []Alert {
	alerts := make([]Alert, 0, len(meds))
	for _, m := range meds {
		kind := KindFor(m.TotalPills)
		if kind == AlertNone {
			continue
		}

		count := m.TotalPills
		if kind == AlertEmpty {
			count = 0
		}

		alerts = append(alerts, Alert{
			Kind:           kind,
			BoxID:          m.BoxID,
			MedicationName: m.Name,
			Count:          count,
		})
	}
	return alerts
}
