package hardware

import (
	"context"
	"fmt"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const relayCommandTimeout = 5 * time.Second

// MQTTRelay drives the relay HAT through an MQTT bridge on the tent
// controller. Commands go to growtent/relay/<device>/set as "1"/"0";
// the bridge applies active-LOW GPIO levels.
type MQTTRelay struct {
	client MQTT.Client
	log    zerolog.Logger

	mu     sync.RWMutex
	states map[string]bool
}

// NewMQTTRelay connects and initializes every channel to OFF. The broker
// client ID is clientID with a "-relay" suffix, so relay and sensor can share
// one configured base ID.
func NewMQTTRelay(broker, clientID string, log zerolog.Logger) (*MQTTRelay, error) {
	opts := MQTT.NewClientOptions().AddBroker(broker).SetClientID(clientID + "-relay")
	client := MQTT.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("relay mqtt connect: %w", token.Error())
	}

	r := &MQTTRelay{
		client: client,
		log:    log,
		states: make(map[string]bool, len(DeviceNames)),
	}
	for _, name := range DeviceNames {
		r.states[name] = false
	}
	return r, nil
}

// SetState publishes the command and tracks the new state on success.
func (r *MQTTRelay) SetState(ctx context.Context, device string, on bool) error {
	if !KnownDevice(device) {
		return fmt.Errorf("unknown device %q", device)
	}

	payload := "0"
	if on {
		payload = "1"
	}
	topic := fmt.Sprintf("growtent/relay/%s/set", device)
	token := r.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(relayCommandTimeout) {
		return fmt.Errorf("relay command to %s timed out", device)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("relay command to %s: %w", device, err)
	}

	r.mu.Lock()
	r.states[device] = on
	r.mu.Unlock()
	r.log.Debug().Str("device", device).Bool("on", on).Msg("relay command sent")
	return nil
}

// GetState reports the last commanded state.
func (r *MQTTRelay) GetState(device string) (bool, error) {
	if !KnownDevice(device) {
		return false, fmt.Errorf("unknown device %q", device)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[device], nil
}

// States returns a copy of all channel states.
func (r *MQTTRelay) States() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.states))
	for k, v := range r.states {
		out[k] = v
	}
	return out
}

// AllOff releases every channel; used on shutdown.
func (r *MQTTRelay) AllOff(ctx context.Context) error {
	var firstErr error
	for _, name := range DeviceNames {
		if err := r.SetState(ctx, name, false); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close releases all channels and disconnects.
func (r *MQTTRelay) Close() {
	if err := r.AllOff(context.Background()); err != nil {
		r.log.Error().Err(err).Msg("releasing relays on close")
	}
	r.client.Disconnect(250)
}
