package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/config"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/service"
)

// Consumer is the optional MQTT sensor ingest path: sensors publishing to
// svitlobot/sensors/<id>/data with the same JSON body as the HTTP ingress
// flow through the same quorum evaluation. Broker credentials replace the
// shared-key check on this path.
type Consumer struct {
	cfg    *config.MQTTConfig
	apiKey string
	ingest *service.IngestService
	client mqtt.Client
	logger *zap.Logger
}

func NewConsumer(cfg *config.MQTTConfig, apiKey string, ingest *service.IngestService, logger *zap.Logger) *Consumer {
	return &Consumer{cfg: cfg, apiKey: apiKey, ingest: ingest, logger: logger}
}

// Start connects and subscribes; it returns once the subscription is
// live. Stop disconnects.
func (c *Consumer) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.Broker)
	opts.SetClientID(c.cfg.ClientID)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
	}
	if c.cfg.Password != "" {
		opts.SetPassword(c.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		c.handleMessage(ctx, msg.Topic(), msg.Payload())
	}
	if token := c.client.Subscribe(c.cfg.Topic, c.cfg.QoS, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", c.cfg.Topic, token.Error())
	}

	c.logger.Info("MQTT sensor ingest started",
		zap.String("broker", c.cfg.Broker),
		zap.String("topic", c.cfg.Topic),
	)
	return nil
}

func (c *Consumer) Stop() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

func (c *Consumer) handleMessage(ctx context.Context, topic string, payload []byte) {
	var in service.ReadingInput
	if err := json.Unmarshal(payload, &in); err != nil {
		c.logger.Warn("malformed MQTT reading",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}
	if in.SensorID == "" {
		c.logger.Warn("MQTT reading without sensor_id", zap.String("topic", topic))
		return
	}

	if _, err := c.ingest.ReportReading(ctx, c.apiKey, in); err != nil {
		c.logger.Warn("MQTT reading rejected",
			zap.String("sensor_id", in.SensorID),
			zap.Error(err),
		)
	}
}
