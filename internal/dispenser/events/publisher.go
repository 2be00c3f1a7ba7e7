package events

import (
	"context"

	"github.com/pillbox/pillbox-backend/internal/dispenser/repository"
	"github.com/pillbox/pillbox-backend/pkg/logger"
	"github.com/pillbox/pillbox-backend/pkg/messaging"
)

// Publisher is satisfied by *messaging.Publisher
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// DispenserEventPublisher publishes dispenser events. A nil receiver is a
// valid no-op so the service runs without a broker.
type DispenserEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewDispenserEventPublisher declares the exchange and creates a publisher on it
func NewDispenserEventPublisher(rmq *messaging.RabbitMQ, exchange, source string, log *logger.Logger) (*DispenserEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, exchange, source, log)
	if err != nil {
		return nil, err
	}

	return NewDispenserEventPublisherWith(publisher, log), nil
}

// NewDispenserEventPublisherWith wraps an existing publisher
func NewDispenserEventPublisherWith(publisher Publisher, log *logger.Logger) *DispenserEventPublisher {
	return &DispenserEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishPillsDispensed publishes a pills dispensed event
func (p *DispenserEventPublisher) PublishPillsDispensed(ctx context.Context, boxID, dispensed, remaining int, source string) {
	if p == nil {
		return
	}

	data := messaging.PillsDispensedEvent{
		BoxID:     boxID,
		Dispensed: dispensed,
		Remaining: remaining,
		Source:    source,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPillsDispensed, data); err != nil {
		p.logger.Error().Err(err).Int("box_id", boxID).Msg("failed to publish pills dispensed event")
	}
}

// PublishStockAlert publishes a stock alert event
func (p *DispenserEventPublisher) PublishStockAlert(ctx context.Context, boxID int, medicationName, kind string, remaining int) {
	if p == nil {
		return
	}

	data := messaging.StockAlertEvent{
		BoxID:          boxID,
		MedicationName: medicationName,
		Kind:           kind,
		Remaining:      remaining,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAlert, data); err != nil {
		p.logger.Error().Err(err).Int("box_id", boxID).Msg("failed to publish stock alert event")
	}
}

// PublishMedicationCreated publishes a medication created event
func (p *DispenserEventPublisher) PublishMedicationCreated(ctx context.Context, m *repository.Medication) {
	p.publishChanged(ctx, messaging.EventMedicationCreated, m)
}

// PublishMedicationUpdated publishes a medication updated event
func (p *DispenserEventPublisher) PublishMedicationUpdated(ctx context.Context, m *repository.Medication) {
	p.publishChanged(ctx, messaging.EventMedicationUpdated, m)
}

// PublishMedicationDeleted publishes a medication deleted event
func (p *DispenserEventPublisher) PublishMedicationDeleted(ctx context.Context, boxID int) {
	if p == nil {
		return
	}

	data := messaging.MedicationChangedEvent{BoxID: boxID}

	if err := p.publisher.Publish(ctx, messaging.EventMedicationDeleted, data); err != nil {
		p.logger.Error().Err(err).Int("box_id", boxID).Msg("failed to publish medication deleted event")
	}
}

func (p *DispenserEventPublisher) publishChanged(ctx context.Context, eventType string, m *repository.Medication) {
	if p == nil {
		return
	}

	data := messaging.MedicationChangedEvent{
		BoxID:          m.BoxID,
		MedicationID:   m.MedicationID,
		MedicationName: m.Name,
		TotalPills:     m.TotalPills,
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Int("box_id", m.BoxID).Str("event_type", eventType).Msg("failed to publish medication event")
	}
}
