package hardware

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/Is0cre/growtent/internal/models"
)

const sensorTopic = "growtent/sensor/bme680"

// MQTTSensor caches the latest BME680 sample published by the sensor node.
// Read never touches the bus; it returns the cached sample as long as it is
// younger than maxAge.
type MQTTSensor struct {
	client MQTT.Client
	log    zerolog.Logger
	maxAge time.Duration

	mu   sync.RWMutex
	last *models.SensorReading
}

// NewMQTTSensor connects and subscribes to the sensor node topic. The broker
// client ID is clientID with a "-sensor" suffix.
func NewMQTTSensor(broker, clientID string, maxAge time.Duration, log zerolog.Logger) (*MQTTSensor, error) {
	opts := MQTT.NewClientOptions().AddBroker(broker).SetClientID(clientID + "-sensor")
	client := MQTT.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("sensor mqtt connect: %w", token.Error())
	}

	s := &MQTTSensor{client: client, log: log, maxAge: maxAge}
	if token := client.Subscribe(sensorTopic, 1, s.onMessage); token.Wait() && token.Error() != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("sensor mqtt subscribe: %w", token.Error())
	}
	return s, nil
}

func (s *MQTTSensor) onMessage(_ MQTT.Client, msg MQTT.Message) {
	var r models.SensorReading
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		s.log.Error().Err(err).Str("topic", msg.Topic()).Msg("bad sensor payload")
		return
	}
	if r.CapturedAt.IsZero() {
		r.CapturedAt = time.Now()
	}

	s.mu.Lock()
	s.last = &r
	s.mu.Unlock()
}

// Read returns the cached sample or an error when it is missing or stale.
func (s *MQTTSensor) Read(ctx context.Context) (*models.SensorReading, error) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		return nil, fmt.Errorf("no sensor data received yet")
	}
	if age := time.Since(last.CapturedAt); age > s.maxAge {
		return nil, fmt.Errorf("sensor data stale (%s old)", age.Round(time.Second))
	}
	copy := *last
	return &copy, nil
}

// Close unsubscribes and disconnects.
func (s *MQTTSensor) Close() {
	s.client.Unsubscribe(sensorTopic)
	s.client.Disconnect(250)
}
