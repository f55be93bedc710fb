// Package telemetry publishes ambient readings and mode changes to MQTT.
package telemetry

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/matryx/internal/ambient"
	"github.com/coreman2200/matryx/internal/director"
)

type Config struct {
	Broker   string // host:port
	ClientID string
	Prefix   string // topics are <prefix>/ambient and <prefix>/mode
	QoS      byte
	Timeout  time.Duration // bound on each publish
	// ConnectTimeout bounds Dial; 0 means 5s.
	ConnectTimeout time.Duration
}

// Publisher is the part of mqtt.Client used here.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT implements ambient.Observer and director.ModeObserver. Publishing
// never blocks the caller; each message is confirmed on its own goroutine.
type MQTT struct {
	cfg    Config
	client Publisher
	raw    mqtt.Client

	connected atomic.Bool
	wg        sync.WaitGroup

	mu        sync.Mutex
	published map[string]uint64
	errors    uint64
}

type AmbientMessage struct {
	Level   uint8     `json:"level"`
	Session string    `json:"session"`
	Attempt int       `json:"attempt"`
	FourCC  string    `json:"fourcc"`
	At      time.Time `json:"at"`
}

type ModeMessage struct {
	Mode  director.Mode `json:"mode"`
	Level uint8         `json:"level"`
	At    time.Time     `json:"at"`
}

func (c Config) withDefaults() Config {
	if c.ClientID == "" {
		c.ClientID = "matryx"
	}
	if c.Prefix == "" {
		c.Prefix = "matryx"
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	return c
}

// Dial connects to the broker. The client keeps reconnecting on its own
// after a successful first connect.
func Dial(cfg Config) (*MQTT, error) {
	cfg = cfg.withDefaults()
	m := &MQTT{cfg: cfg, published: map[string]uint64{}}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		m.connected.Store(true)
		log.Info().Str("component", "telemetry").Str("broker", cfg.Broker).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		m.connected.Store(false)
		log.Warn().Err(err).Str("component", "telemetry").Str("broker", cfg.Broker).Msg("mqtt connection lost, reconnecting")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		// stops the retry loop started by Connect
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	m.connected.Store(true)
	m.client, m.raw = client, client
	return m, nil
}

// New wraps an existing publisher, e.g. a test double.
func New(p Publisher, cfg Config) *MQTT {
	m := &MQTT{cfg: cfg.withDefaults(), client: p, published: map[string]uint64{}}
	m.connected.Store(true)
	return m
}

func (m *MQTT) Topic(name string) string { return m.cfg.Prefix + "/" + name }

func (m *MQTT) ObserveSample(s ambient.Sample) {
	m.publish("ambient", AmbientMessage{
		Level: s.Level, Session: s.Session, Attempt: s.Attempt, FourCC: s.Format.FourCC, At: s.At,
	}, false)
}

func (m *MQTT) ObserveMode(mode director.Mode, level uint8) {
	m.publish("mode", ModeMessage{Mode: mode, Level: level, At: time.Now()}, true)
}

func (m *MQTT) publish(name string, v any, retained bool) {
	topic := m.Topic(name)
	if !m.connected.Load() {
		m.fail(topic, fmt.Errorf("not connected"))
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		m.fail(topic, err)
		return
	}
	token := m.client.Publish(topic, m.cfg.QoS, retained, payload)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if !token.WaitTimeout(m.cfg.Timeout) {
			m.fail(topic, fmt.Errorf("publish timeout"))
			return
		}
		if err := token.Error(); err != nil {
			m.fail(topic, err)
			return
		}
		m.mu.Lock()
		m.published[topic]++
		m.mu.Unlock()
	}()
}

func (m *MQTT) fail(topic string, err error) {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
	log.Debug().Err(err).Str("component", "telemetry").Str("topic", topic).Msg("publish failed")
}

type Stats struct {
	Published map[string]uint64
	Errors    uint64
}

func (m *MQTT) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.published))
	for k, v := range m.published {
		out[k] = v
	}
	return Stats{Published: out, Errors: m.errors}
}

// Close waits for pending confirmations and disconnects.
func (m *MQTT) Close() error {
	m.wg.Wait()
	if m.raw != nil && m.raw.IsConnected() {
		m.raw.Disconnect(250)
	}
	m.connected.Store(false)
	return nil
}
