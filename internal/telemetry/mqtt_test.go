package telemetry

import (
	"encoding/json"
	"errors"
	"net"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/matryx/internal/ambient"
	"github.com/coreman2200/matryx/internal/director"
)

var (
	_ ambient.Observer      = (*MQTT)(nil)
	_ director.ModeObserver = (*MQTT)(nil)
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeBroker struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{err: b.err}
}

func TestPublishesAmbientSamples(t *testing.T) {
	b := &fakeBroker{}
	m := New(b, Config{Prefix: "den"})
	m.ObserveSample(ambient.Sample{Level: 42, Session: "s1", Attempt: 3, Format: ambient.Format{FourCC: ambient.FourCCMJPG}})
	require.NoError(t, m.Close())

	require.Len(t, b.msgs, 1)
	assert.Equal(t, "den/ambient", b.msgs[0].topic)
	assert.False(t, b.msgs[0].retained)
	var got AmbientMessage
	require.NoError(t, json.Unmarshal(b.msgs[0].payload, &got))
	assert.Equal(t, uint8(42), got.Level)
	assert.Equal(t, "s1", got.Session)
	assert.Equal(t, 3, got.Attempt)
	assert.Equal(t, "MJPG", got.FourCC)
	assert.Equal(t, uint64(1), m.Stats().Published["den/ambient"])
}

func TestPublishesRetainedMode(t *testing.T) {
	b := &fakeBroker{}
	m := New(b, Config{})
	m.ObserveMode(director.ModeNight, 7)
	require.NoError(t, m.Close())

	require.Len(t, b.msgs, 1)
	assert.Equal(t, "matryx/mode", b.msgs[0].topic)
	assert.True(t, b.msgs[0].retained)
	var got ModeMessage
	require.NoError(t, json.Unmarshal(b.msgs[0].payload, &got))
	assert.Equal(t, director.ModeNight, got.Mode)
	assert.Equal(t, uint8(7), got.Level)
}

func TestPublishErrorsAreCounted(t *testing.T) {
	b := &fakeBroker{err: errors.New("broker said no")}
	m := New(b, Config{})
	m.ObserveMode(director.ModeDay, 200)
	m.ObserveMode(director.ModeNight, 2)
	require.NoError(t, m.Close())
	assert.Equal(t, uint64(2), m.Stats().Errors)
	assert.Empty(t, m.Stats().Published)

	m.connected.Store(false)
	m.ObserveMode(director.ModeDay, 200)
	assert.Equal(t, uint64(3), m.Stats().Errors)
	assert.Len(t, b.msgs, 2, "nothing is sent while disconnected")
}

func connectLoops() int {
	buf := make([]byte, 1<<20)
	buf = buf[:runtime.Stack(buf, true)]
	return strings.Count(string(buf), "paho.mqtt.golang.(*client).Connect.func")
}

func TestDialFailureStopsRetrying(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	before := connectLoops()
	m, err := Dial(Config{Broker: addr, ConnectTimeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.Nil(t, m)
	assert.Eventually(t, func() bool { return connectLoops() <= before }, 5*time.Second, 50*time.Millisecond,
		"connect retry loop still running after Dial failed")
}
