package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/anicoll/sensor-ledger/internal/pkg/config"
	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

type mockToken struct {
	completed bool
	err       error
}

func (t *mockToken) Wait() bool                     { return t.completed }
func (t *mockToken) WaitTimeout(time.Duration) bool { return t.completed }
func (t *mockToken) Error() error                   { return t.err }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient embeds the interface so only the methods under test need bodies.
type mockClient struct {
	paho_mqtt.Client

	ConnectFunc func() paho_mqtt.Token
	PublishFunc func(topic string, qos byte, retained bool, payload any) paho_mqtt.Token

	mu       sync.Mutex
	messages []published
}

func (m *mockClient) Connect() paho_mqtt.Token {
	return m.ConnectFunc()
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload any) paho_mqtt.Token {
	m.mu.Lock()
	m.messages = append(m.messages, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(topic, qos, retained, payload)
	}
	return &mockToken{completed: true}
}

func record(index uint64, sensorID, temp, hum string) model.ReconciledRecord {
	return model.ReconciledRecord{
		StoredRecord: model.StoredRecord{
			Index:     index,
			Timestamp: 1000 + int64(index),
			SensorID:  sensorID,
			Reading: model.Reading{
				Temperature: decimal.NewNullDecimal(decimal.RequireFromString(temp)),
				Humidity:    decimal.NewNullDecimal(decimal.RequireFromString(hum)),
			},
		},
		TransactionID: "0xabc",
	}
}

func TestWrite_RegistersOnceAndPublishesState(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	client := &mockClient{}
	svc := New(client, "")

	snapshot := &model.Snapshot{Records: []model.ReconciledRecord{
		record(2, "SHT20-PascaPanen-001", "32", "70"),
		record(1, "SHT20-PascaPanen-001", "40", "95"),
	}}
	require.NoError(t, svc.Write(context.Background(), snapshot))
	require.Len(t, client.messages, len(sensorEntities)+1)

	for _, msg := range client.messages[:len(sensorEntities)] {
		assert.Regexp(t, `^homeassistant/sensor/sht20-pascapanen-001/sht20-pascapanen-001_[a-z_-]+/config$`, msg.topic)
		assert.True(t, msg.retained)
		var reg model.RegisterMessage
		require.NoError(t, json.Unmarshal(msg.payload, &reg))
		assert.Equal(t, "~/state", reg.StateTopic)
		assert.Equal(t, "homeassistant/sensor/sht20-pascapanen-001", reg.Tilda)
	}

	state := client.messages[len(sensorEntities)]
	assert.Equal(t, "homeassistant/sensor/sht20-pascapanen-001/state", state.topic)
	assert.True(t, state.retained)
	assert.JSONEq(t, `{
		"temperature": "32",
		"humidity": "70",
		"tier": "optimal",
		"price_per_kg": 35000,
		"ledger_index": 2,
		"transaction_id": "0xabc",
		"timestamp": 1002
	}`, string(state.payload))

	require.NoError(t, svc.Write(context.Background(), snapshot))
	assert.Len(t, client.messages, len(sensorEntities)+2, "discovery is only sent once")
}

func TestWrite_OneStatePerSensor(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	client := &mockClient{}
	svc := New(client, "sensors")

	snapshot := &model.Snapshot{Records: []model.ReconciledRecord{
		record(3, "a", "32", "70"),
		record(2, "b", "29", "55"),
		record(1, "a", "40", "95"),
	}}
	require.NoError(t, svc.Write(context.Background(), snapshot))

	var states []string
	for _, m := range client.messages {
		if m.topic == svc.StateTopic("a") || m.topic == svc.StateTopic("b") {
			states = append(states, m.topic)
		}
	}
	assert.Equal(t, []string{"sensors/sensor/a/state", "sensors/sensor/b/state"}, states)
}

func TestWrite_PublishFailure(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	brokerErr := errors.New("not connected")
	client := &mockClient{
		PublishFunc: func(string, byte, bool, any) paho_mqtt.Token {
			return &mockToken{completed: true, err: brokerErr}
		},
	}
	svc := New(client, "")
	snapshot := &model.Snapshot{Records: []model.ReconciledRecord{record(0, "a", "32", "70")}}

	assert.ErrorIs(t, svc.Write(context.Background(), snapshot), brokerErr)
	assert.Empty(t, svc.registered, "failed registration is retried")
}

func TestWrite_Timeout(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	client := &mockClient{
		PublishFunc: func(string, byte, bool, any) paho_mqtt.Token {
			return &mockToken{completed: false}
		},
	}
	svc := New(client, "")
	snapshot := &model.Snapshot{Records: []model.ReconciledRecord{record(0, "a", "32", "70")}}
	assert.ErrorIs(t, svc.Write(context.Background(), snapshot), ErrTimeout)
}

func TestWrite_NilSnapshot(t *testing.T) {
	client := &mockClient{}
	assert.NoError(t, New(client, "").Write(context.Background(), nil))
	assert.Empty(t, client.messages)
}

func TestSensorState_Indeterminate(t *testing.T) {
	rec := model.ReconciledRecord{StoredRecord: model.StoredRecord{SensorID: "a"}, TransactionID: model.Unresolved}
	state := sensorState(rec)
	assert.Nil(t, state.Temperature)
	assert.Nil(t, state.Humidity)
	assert.Equal(t, "indeterminate", state.Tier)
	assert.Zero(t, state.PricePerKg)
	assert.Equal(t, model.Unresolved, state.TransactionID)
}

func TestConnect(t *testing.T) {
	ok := &mockClient{ConnectFunc: func() paho_mqtt.Token { return &mockToken{completed: true} }}
	assert.NoError(t, New(ok, "").Connect())

	refused := errors.New("refused")
	failed := &mockClient{ConnectFunc: func() paho_mqtt.Token { return &mockToken{err: refused} }}
	assert.ErrorIs(t, New(failed, "").Connect(), refused)

	slow := &mockClient{ConnectFunc: func() paho_mqtt.Token { return &mockToken{} }}
	assert.Error(t, New(slow, "").Connect())
}

func TestNewClient(t *testing.T) {
	client := NewClient(&config.MqttConfig{Host: "broker:1883"}, "sensor-ledger")
	reader := client.OptionsReader()
	require.Len(t, reader.Servers(), 1)
	assert.Equal(t, "tcp://broker:1883", reader.Servers()[0].String())
	assert.Equal(t, "sensor-ledger", reader.ClientID())
}
