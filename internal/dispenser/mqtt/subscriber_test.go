package mqtt

import (
	"context"
	"testing"

	"github.com/pillbox/pillbox-backend/internal/dispenser/events"
	"github.com/pillbox/pillbox-backend/internal/dispenser/repository"
	"github.com/pillbox/pillbox-backend/internal/dispenser/service"
	"github.com/pillbox/pillbox-backend/pkg/config"
	"github.com/pillbox/pillbox-backend/pkg/errors"
	"github.com/pillbox/pillbox-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMessage implements paho's Message interface
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func newTestSubscriber(t *testing.T) (*Subscriber, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Insert(context.Background(), &repository.Medication{
		BoxID: 2, Name: "Aspirin", TotalPills: 10, PillsPerIntake: 1, DosesPerDay: 1, ScheduleTime1: "08:00",
	}))

	var publisher *events.DispenserEventPublisher
	svc := service.NewDispenserService(store, publisher, 3, logger.Nop())
	cfg := &config.MQTTConfig{Broker: "tcp://localhost:1883", Topic: "pillbox/dispense", QoS: 1}
	return NewSubscriber(cfg, svc, "SECRET123", logger.Nop()), store
}

func remaining(t *testing.T, store *repository.MemoryStore) int {
	t.Helper()
	m, err := store.GetByBox(context.Background(), 2)
	require.NoError(t, err)
	return m.TotalPills
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantErr   error
		wantStock int
	}{
		{"applies report", `{"api_key":"SECRET123","box_id":2,"dispensed":3}`, nil, 7},
		{"wrong key", `{"api_key":"nope","box_id":2,"dispensed":3}`, errors.ErrUnauthorized, 10},
		{"missing key", `{"box_id":2,"dispensed":3}`, errors.ErrUnauthorized, 10},
		{"missing dispensed", `{"api_key":"SECRET123","box_id":2}`, errors.ErrValidation, 10},
		{"malformed", `not json`, errors.ErrBadRequest, 10},
		{"unknown box", `{"api_key":"SECRET123","box_id":3,"dispensed":1}`, errors.ErrNotFound, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, store := newTestSubscriber(t)

			err := sub.Handle(context.Background(), []byte(tt.payload))

			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			assert.Equal(t, tt.wantStock, remaining(t, store))
		})
	}
}

func TestOnMessage_AppliesPayload(t *testing.T) {
	sub, store := newTestSubscriber(t)

	sub.onMessage(nil, &fakeMessage{
		topic:   "pillbox/dispense",
		payload: []byte(`{"api_key":"SECRET123","box_id":2,"dispensed":4}`),
	})

	assert.Equal(t, 6, remaining(t, store))
}

func TestHealth(t *testing.T) {
	var disabled *Subscriber
	assert.Equal(t, "disabled", disabled.Health()["status"])
	disabled.Stop()

	sub, _ := newTestSubscriber(t)
	assert.Equal(t, "down", sub.Health()["status"])
}
