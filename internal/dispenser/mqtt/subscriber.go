// Package mqtt ingests dispense reports from controllers that publish over
// MQTT instead of calling the HTTP endpoint.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pillbox/pillbox-backend/internal/dispenser/service"
	"github.com/pillbox/pillbox-backend/pkg/config"
	"github.com/pillbox/pillbox-backend/pkg/errors"
	"github.com/pillbox/pillbox-backend/pkg/logger"
	"github.com/pillbox/pillbox-backend/pkg/metrics"
)

// handleTimeout bounds the store work done for one message
const handleTimeout = 5 * time.Second

// Subscriber applies reports published on the configured topic. The
// payload is the HTTP report body plus an api_key field.
type Subscriber struct {
	config  *config.MQTTConfig
	service *service.DispenserService
	apiKey  string
	logger  *logger.Logger

	mu     sync.Mutex
	client mqtt.Client
}

// NewSubscriber creates a subscriber; call Start to connect
func NewSubscriber(cfg *config.MQTTConfig, svc *service.DispenserService, apiKey string, log *logger.Logger) *Subscriber {
	return &Subscriber{
		config:  cfg,
		service: svc,
		apiKey:  apiKey,
		logger:  log,
	}
}

// Start connects to the broker. The subscription is (re)established in the
// connect handler so it survives automatic reconnects.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.config.Broker)
	opts.SetClientID(s.config.ClientID)
	opts.SetUsername(s.config.Username)
	opts.SetPassword(s.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)

	s.client = mqtt.NewClient(opts)

	token := s.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(s.config.ConnectTimeout):
		return fmt.Errorf("connection timeout after %s", s.config.ConnectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}

	return nil
}

// Stop disconnects from the broker
func (s *Subscriber) Stop() {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
		s.logger.Info().Msg("MQTT subscriber disconnected")
	}
}

// Health returns the health status of the broker connection
func (s *Subscriber) Health() map[string]string {
	if s == nil {
		return map[string]string{"status": "disabled"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil || !s.client.IsConnected() {
		return map[string]string{"status": "down"}
	}
	return map[string]string{"status": "up"}
}

func (s *Subscriber) onConnect(client mqtt.Client) {
	s.logger.Info().Str("broker", s.config.Broker).Str("topic", s.config.Topic).Msg("connected to MQTT broker")

	token := client.Subscribe(s.config.Topic, s.config.QoS, s.onMessage)
	if !token.WaitTimeout(10 * time.Second) {
		s.logger.Error().Str("topic", s.config.Topic).Msg("MQTT subscribe timeout")
		return
	}
	if err := token.Error(); err != nil {
		s.logger.Error().Err(err).Str("topic", s.config.Topic).Msg("MQTT subscribe failed")
	}
}

func (s *Subscriber) onConnectionLost(client mqtt.Client, err error) {
	s.logger.Warn().Err(err).Str("broker", s.config.Broker).Msg("connection to MQTT broker lost")
}

func (s *Subscriber) onMessage(client mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if err := s.Handle(ctx, msg.Payload()); err != nil {
		s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("MQTT dispense report rejected")
	}
}

// Handle authenticates and applies one report payload. It performs the
// same checks as the HTTP endpoint.
func (s *Subscriber) Handle(ctx context.Context, payload []byte) error {
	var auth struct {
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(payload, &auth); err != nil {
		metrics.DeviceReport(metrics.ResultBadRequest)
		return errors.BadRequest("invalid JSON body")
	}

	if !service.KeyMatches(auth.APIKey, s.apiKey) {
		metrics.DeviceReport(metrics.ResultUnauthorized)
		return errors.Unauthorized("invalid api key")
	}

	report, err := service.DecodeReport(payload)
	if err != nil {
		metrics.DeviceReport(metrics.ResultBadRequest)
		return err
	}

	if _, err := s.service.RecordDispense(ctx, *report.BoxID, *report.Dispensed, service.SourceMQTT); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			metrics.DeviceReport(metrics.ResultNotFound)
		} else {
			metrics.DeviceReport(metrics.ResultError)
		}
		return err
	}

	metrics.DeviceReport(metrics.ResultSuccess)
	return nil
}
