package main

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	mqttPublishTimeout  = time.Second
	mqttConnectPollTime = 250 * time.Millisecond
)

// mqttPublisher is the part of mqtt.Client the mirror needs.
type mqttPublisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type linesMessage struct {
	Lines      []string `json:"lines"`
	RenderedAt string   `json:"renderedAt"`
}

// mqttMirror republishes the display contents as a retained message
// whenever the rendered text changes.
type mqttMirror struct {
	client mqttPublisher
	topic  string
	log    zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	last string

	stop      chan struct{}
	stopOnce  sync.Once
	watchDone chan struct{} // closed once watchConnect returns
}

func newMQTTMirror(cfg MQTTConfig, logger zerolog.Logger) *mqttMirror {
	log := logger.With().Str("component", "mqtt").Logger()

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "juryoled-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	m := &mqttMirror{
		client:    client,
		topic:     cfg.Topic,
		log:       log,
		now:       time.Now,
		stop:      make(chan struct{}),
		watchDone: make(chan struct{}),
	}
	// with ConnectRetry the token only completes once connected
	go m.watchConnect(client.Connect(), cfg.Broker)
	return m
}

// watchConnect logs the outcome of the initial connect, giving up when the
// mirror is closed first.
func (m *mqttMirror) watchConnect(token mqtt.Token, broker string) {
	defer close(m.watchDone)
	for !token.WaitTimeout(mqttConnectPollTime) {
		select {
		case <-m.stop:
			return
		default:
		}
	}
	if err := token.Error(); err != nil {
		m.log.Error().Err(err).Str("broker", broker).Msg("MQTT connect failed")
	}
}

func encodeLines(lines [numSlots]string, at time.Time) ([]byte, error) {
	return jsonAPI.Marshal(linesMessage{
		Lines:      lines[:],
		RenderedAt: at.UTC().Format(time.RFC3339),
	})
}

func (m *mqttMirror) Rendered(lines [numSlots]string) {
	if !m.client.IsConnectionOpen() {
		return
	}
	text := strings.Join(lines[:], "\n")

	m.mu.Lock()
	defer m.mu.Unlock()
	if text == m.last {
		return
	}
	payload, err := encodeLines(lines, m.now())
	if err != nil {
		m.log.Error().Err(err).Msg("failed to encode lines")
		return
	}
	token := m.client.Publish(m.topic, 0, true, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		m.log.Warn().Str("topic", m.topic).Msg("MQTT publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		m.log.Error().Err(err).Str("topic", m.topic).Msg("MQTT publish failed")
		return
	}
	m.last = text
}

func (m *mqttMirror) Close() {
	m.stopOnce.Do(func() {
		if m.stop != nil {
			close(m.stop)
		}
		m.client.Disconnect(250)
	})
}
