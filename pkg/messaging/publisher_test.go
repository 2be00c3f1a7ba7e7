package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pillbox/pillbox-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (c *recordingChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.exchange = exchange
	c.key = key
	c.msg = msg
	return c.err
}

func TestPublisher_Publish(t *testing.T) {
	ch := &recordingChannel{}
	p := NewPublisherWithChannel(ch, "dispenser.events", "dispenser-service", logger.Nop())

	ctx := WithCorrelationID(context.Background(), "req-1")
	err := p.Publish(ctx, EventPillsDispensed, PillsDispensedEvent{BoxID: 2, Dispensed: 3, Remaining: 7, Source: "http"})
	require.NoError(t, err)

	assert.Equal(t, "dispenser.events", ch.exchange)
	assert.Equal(t, EventPillsDispensed, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "req-1", ch.msg.CorrelationId)

	var event Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &event))
	assert.Equal(t, EventPillsDispensed, event.Type)
	assert.Equal(t, "dispenser-service", event.Source)
	assert.Equal(t, ch.msg.MessageId, event.ID)

	var data PillsDispensedEvent
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, 7, data.Remaining)
}

func TestPublisher_PublishError(t *testing.T) {
	ch := &recordingChannel{err: amqp.ErrClosed}
	p := NewPublisherWithChannel(ch, "dispenser.events", "dispenser-service", logger.Nop())

	err := p.Publish(context.Background(), EventStockAlert, StockAlertEvent{BoxID: 1})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestRabbitMQ_NilHealthIsDisabled(t *testing.T) {
	var r *RabbitMQ
	assert.Equal(t, "disabled", r.Health()["status"])
	assert.NoError(t, r.Close())
}
