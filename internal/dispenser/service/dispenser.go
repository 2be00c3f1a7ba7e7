package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"github.com/pillbox/pillbox-backend/internal/dispenser/repository"
	"github.com/pillbox/pillbox-backend/pkg/errors"
	"github.com/pillbox/pillbox-backend/pkg/httputil"
	"github.com/pillbox/pillbox-backend/pkg/logger"
	"github.com/pillbox/pillbox-backend/pkg/metrics"
)

// Report sources
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// MedicationStore is the persistence the dispenser needs.
// *repository.MedicationRepository implements it.
type MedicationStore interface {
	Insert(ctx context.Context, m *repository.Medication) error
	Update(ctx context.Context, m *repository.Medication) error
	Decrement(ctx context.Context, boxID, amount int) (int, error)
	Delete(ctx context.Context, boxID int) (bool, error)
	ListAll(ctx context.Context) ([]*repository.Medication, error)
	GetByBox(ctx context.Context, boxID int) (*repository.Medication, error)
}

// EventPublisher receives dispenser events.
// *events.DispenserEventPublisher implements it, including as a nil pointer.
type EventPublisher interface {
	PublishPillsDispensed(ctx context.Context, boxID, dispensed, remaining int, source string)
	PublishStockAlert(ctx context.Context, boxID int, medicationName, kind string, remaining int)
	PublishMedicationCreated(ctx context.Context, m *repository.Medication)
	PublishMedicationUpdated(ctx context.Context, m *repository.Medication)
	PublishMedicationDeleted(ctx context.Context, boxID int)
}

// DispenseReport is the payload a controller sends after dispensing
type DispenseReport struct {
	BoxID     *int `json:"box_id" validate:"required,min=1"`
	Dispensed *int `json:"dispensed" validate:"required,min=0"`
}

// DecodeReport parses and validates a dispense report body
func DecodeReport(data []byte) (*DispenseReport, error) {
	var report DispenseReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.BadRequest("invalid JSON body")
	}
	if err := httputil.Validate(report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Dashboard is everything the operator page shows
type Dashboard struct {
	Medications []*repository.Medication
	Alerts      []Alert
}

// DispenserService handles box inventory business logic
type DispenserService struct {
	store     MedicationStore
	publisher EventPublisher
	boxCount  int
	logger    *logger.Logger
}

// NewDispenserService creates a new dispenser service
func NewDispenserService(store MedicationStore, publisher EventPublisher, boxCount int, log *logger.Logger) *DispenserService {
	return &DispenserService{
		store:     store,
		publisher: publisher,
		boxCount:  boxCount,
		logger:    log,
	}
}

// BoxCount returns the number of physical boxes
func (s *DispenserService) BoxCount() int {
	return s.boxCount
}

// AddMedication loads a medication into an empty box
func (s *DispenserService) AddMedication(ctx context.Context, m *repository.Medication) error {
	if err := s.checkMedication(m); err != nil {
		return err
	}

	if err := s.store.Insert(ctx, m); err != nil {
		return err
	}

	s.logger.Info().Int("box_id", m.BoxID).Str("medication", m.Name).Int("total_pills", m.TotalPills).Msg("medication added")
	metrics.SetBoxStock(m.BoxID, m.TotalPills)
	s.publisher.PublishMedicationCreated(ctx, m)
	return nil
}

// UpdateMedication overwrites the settings of an occupied box
func (s *DispenserService) UpdateMedication(ctx context.Context, m *repository.Medication) error {
	if err := s.checkMedication(m); err != nil {
		return err
	}

	if err := s.store.Update(ctx, m); err != nil {
		return err
	}

	s.logger.Info().Int("box_id", m.BoxID).Int("total_pills", m.TotalPills).Msg("medication updated")
	metrics.SetBoxStock(m.BoxID, m.TotalPills)
	s.publisher.PublishMedicationUpdated(ctx, m)
	return nil
}

// DeleteMedication empties a box. Deleting an empty box succeeds.
func (s *DispenserService) DeleteMedication(ctx context.Context, boxID int) error {
	deleted, err := s.store.Delete(ctx, boxID)
	if err != nil {
		return err
	}

	if deleted {
		s.logger.Info().Int("box_id", boxID).Msg("medication deleted")
		metrics.ForgetBox(boxID)
		s.publisher.PublishMedicationDeleted(ctx, boxID)
	}
	return nil
}

// RecordDispense applies a controller report and returns the remaining stock
func (s *DispenserService) RecordDispense(ctx context.Context, boxID, dispensed int, source string) (int, error) {
	if boxID < 1 || dispensed < 0 {
		return 0, errors.BadRequest("invalid dispense report")
	}

	remaining, err := s.store.Decrement(ctx, boxID, dispensed)
	if err != nil {
		return 0, err
	}

	metrics.ObserveDispense(boxID, source, dispensed, remaining)
	s.publisher.PublishPillsDispensed(ctx, boxID, dispensed, remaining, source)

	log := s.logger.WithBox(boxID)
	kind := KindFor(remaining)
	switch kind {
	case AlertNone:
		log.Info().Int("dispensed", dispensed).Int("remaining", remaining).Str("source", source).Msg("pills dispensed")
		return remaining, nil
	case AlertEmpty:
		log.Error().Int("dispensed", dispensed).Str("source", source).Msg("box is empty, refill immediately")
	default:
		log.Warn().Int("dispensed", dispensed).Int("remaining", remaining).Str("source", source).Msg("stock running low")
	}

	name := ""
	if med, err := s.store.GetByBox(ctx, boxID); err == nil {
		name = med.Name
	} else {
		log.Warn().Err(err).Msg("failed to load medication for stock alert")
	}
	s.publisher.PublishStockAlert(ctx, boxID, name, string(kind), remaining)

	return remaining, nil
}

// Dashboard reads every box and derives its alerts
func (s *DispenserService) Dashboard(ctx context.Context) (*Dashboard, error) {
	meds, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range meds {
		metrics.SetBoxStock(m.BoxID, m.TotalPills)
	}

	return &Dashboard{
		Medications: meds,
		Alerts:      Classify(meds),
	}, nil
}

func (s *DispenserService) checkMedication(m *repository.Medication) error {
	if m.BoxID < 1 || m.BoxID > s.boxCount {
		return errors.Validation(map[string]string{
			"box_id": fmt.Sprintf("must be between 1 and %d", s.boxCount),
		})
	}

	if m.DosesPerDay != 2 {
		m.DosesPerDay = 1
		m.ScheduleTime2 = nil
		return nil
	}

	if m.ScheduleTime2 == nil || *m.ScheduleTime2 == "" {
		return errors.Validation(map[string]string{"t2": "this field is required"})
	}
	if *m.ScheduleTime2 == m.ScheduleTime1 {
		return errors.Validation(map[string]string{"t2": "must differ from t1"})
	}
	return nil
}

// KeyMatches compares a presented device key with the configured one in
// constant time
func KeyMatches(presented, configured string) bool {
	if presented == "" || configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}
