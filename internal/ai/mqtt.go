package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/emotion-check/internal/config"
	"github.com/kozaktomas/emotion-check/internal/constants"
)

// MQTTClassifier sends frames to a remote classifier worker over MQTT.
// Requests go to <prefix>/request, the worker answers on <prefix>/response/<requestId>.
type MQTTClassifier struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan mqttResponse
}

type mqttRequest struct {
	Payload    string `json:"payload"` // base64 JPEG
	RequestID  string `json:"requestId"`
	ResponseTo string `json:"responseTo"`
}

type mqttResponse struct {
	RequestID string             `json:"requestId"`
	Emotions  map[string]float64 `json:"emotions"`
	Error     string             `json:"error,omitempty"`
}

// NewMQTTClassifier connects to the broker and subscribes to worker replies.
func NewMQTTClassifier(cfg config.MQTTConfig) (*MQTTClassifier, error) {
	if cfg.Broker == "" {
		return nil, errors.New("MQTT broker is not configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.MQTTResponseTimeout
	}

	c := &MQTTClassifier{
		prefix:  strings.TrimSuffix(cfg.TopicPrefix, "/"),
		timeout: timeout,
		pending: make(map[string]chan mqttResponse),
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID("emotion-check-" + uuid.New().String())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(30 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(client mqtt.Client) {
		topic := c.prefix + "/response/+"
		if token := client.Subscribe(topic, 1, c.handleResponse); token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", topic).Msg("MQTT subscribe failed")
			return
		}
		log.Info().Str("topic", topic).Msg("subscribed to classifier replies")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	c.client = mqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("could not connect to MQTT broker: %w", err)
	}
	return c, nil
}

func (c *MQTTClassifier) Name() string {
	return "mqtt"
}

func (c *MQTTClassifier) Real() bool {
	return true
}

func (c *MQTTClassifier) Classify(ctx context.Context, jpeg []byte) (*Classification, error) {
	reqID := uuid.New().String()
	payload, err := json.Marshal(c.newRequest(reqID, jpeg))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ch := c.register(reqID)
	defer c.unregister(reqID)

	token := c.client.Publish(c.prefix+"/request", 1, false, payload)
	if !token.WaitTimeout(c.timeout) {
		return nil, errors.New("timed out publishing classifier request")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("could not publish classifier request: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return nil, fmt.Errorf("classifier worker: %s", resp.Error)
		}
		if len(resp.Emotions) == 0 {
			return nil, ErrNoFace
		}
		return newClassification(resp.Emotions), nil
	case <-timer.C:
		return nil, fmt.Errorf("no reply from classifier worker within %s", c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close disconnects from the broker.
func (c *MQTTClassifier) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

func (c *MQTTClassifier) newRequest(reqID string, jpeg []byte) mqttRequest {
	return mqttRequest{
		Payload:    base64.StdEncoding.EncodeToString(jpeg),
		RequestID:  reqID,
		ResponseTo: c.prefix + "/response/" + reqID,
	}
}

func (c *MQTTClassifier) register(reqID string) chan mqttResponse {
	ch := make(chan mqttResponse, 1)
	c.mu.Lock()
	c.pending[reqID] = ch
	c.mu.Unlock()
	return ch
}

func (c *MQTTClassifier) unregister(reqID string) {
	c.mu.Lock()
	delete(c.pending, reqID)
	c.mu.Unlock()
}

func (c *MQTTClassifier) handleResponse(_ mqtt.Client, m mqtt.Message) {
	if !c.dispatch(m.Payload()) {
		log.Debug().Str("topic", m.Topic()).Msg("dropping classifier reply without a waiting request")
	}
}

// dispatch routes a reply to the request waiting for it and reports whether one was.
func (c *MQTTClassifier) dispatch(payload []byte) bool {
	var resp mqttResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		log.Error().Err(err).Msg("error parsing classifier reply")
		return false
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.RequestID]
	c.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case ch <- resp:
	default:
	}
	return true
}
