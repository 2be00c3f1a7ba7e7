package service

import (
	"testing"

	"github.com/pillbox/pillbox-backend/internal/dispenser/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindFor_Boundaries(t *testing.T) {
	tests := []struct {
		total int
		want  AlertKind
		level StockLevel
	}{
		{0, AlertEmpty, LevelEmpty},
		{1, AlertCritical, LevelCritical},
		{5, AlertCritical, LevelCritical},
		{6, AlertWarning, LevelLow},
		{10, AlertWarning, LevelLow},
		{11, AlertNone, LevelOK},
		{500, AlertNone, LevelOK},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, KindFor(tt.total), "total=%d", tt.total)
		assert.Equal(t, tt.level, LevelFor(tt.total), "total=%d", tt.total)
	}
}

func TestClassify_PreservesOrderAndSkipsHealthyBoxes(t *testing.T) {
	meds := []*repository.Medication{
		{BoxID: 1, Name: "Aspirin", TotalPills: 0},
		{BoxID: 2, Name: "Ibuprofen", TotalPills: 30},
		{BoxID: 3, Name: "Vitamin D", TotalPills: 8},
		{BoxID: 4, Name: "Metformin", TotalPills: 3},
	}

	alerts := Classify(meds)

	require.Len(t, alerts, 3)
	assert.Equal(t, Alert{Kind: AlertEmpty, BoxID: 1, MedicationName: "Aspirin", Count: 0}, alerts[0])
	assert.Equal(t, Alert{Kind: AlertWarning, BoxID: 3, MedicationName: "Vitamin D", Count: 8}, alerts[1])
	assert.Equal(t, Alert{Kind: AlertCritical, BoxID: 4, MedicationName: "Metformin", Count: 3}, alerts[2])
}

func TestClassify_Empty(t *testing.T) {
	assert.Empty(t, Classify(nil))
}

func TestAlert_Text(t *testing.T) {
	tests := []struct {
		alert   Alert
		title   string
		message string
	}{
		{Alert{Kind: AlertEmpty, BoxID: 1, MedicationName: "Aspirin"}, "Box 1 is Empty", "Aspirin - Refill immediately!"},
		{Alert{Kind: AlertCritical, BoxID: 2, MedicationName: "Ibuprofen", Count: 4}, "Critical Stock Alert - Box 2", "Ibuprofen - Only 4 pills remaining"},
		{Alert{Kind: AlertWarning, BoxID: 3, MedicationName: "Vitamin D", Count: 9}, "Low Stock Warning - Box 3", "Vitamin D - 9 pills remaining"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.title, tt.alert.Title())
		assert.Equal(t, tt.message, tt.alert.Message())
	}
}
