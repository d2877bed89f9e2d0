package mqtt_middleware

import (
	"errors"
	"strings"
	"testing"

	"github.com/benmeehan/switchbot-bridge/internal/metrics_collectors"
	"github.com/benmeehan/switchbot-bridge/internal/mocks"
	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// recordingMiddleware appends its name to calls on every publish.
type recordingMiddleware struct {
	name  string
	calls *[]string
	next  MQTTMiddleware
}

func (r *recordingMiddleware) SetNext(next MQTTMiddleware) { r.next = next }

func (r *recordingMiddleware) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	*r.calls = append(*r.calls, r.name)
	return r.next.Publish(topic, qos, retained, payload)
}

func (r *recordingMiddleware) Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) error {
	return r.next.Subscribe(topic, qos, callback)
}

func (r *recordingMiddleware) Unsubscribe(topics ...string) error {
	return r.next.Unsubscribe(topics...)
}

func TestChainedMQTTClient_NoMiddlewares(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Publish", "a/b", byte(0), false, []byte("x")).Return(mocks.NewCompletedToken(nil))
	client.On("Subscribe", "a/+", byte(1), mock.Anything).Return(mocks.NewCompletedToken(nil))
	client.On("Unsubscribe", []string{"a/+"}).Return(mocks.NewCompletedToken(nil))

	chain := NewChainedMQTTClient(client, nil)
	assert.Equal(t, 0, chain.Len())

	assert.NoError(t, chain.Publish("a/b", 0, false, []byte("x")))
	assert.NoError(t, chain.Subscribe("a/+", 1, func(mqttLib.Client, mqttLib.Message) {}))
	assert.NoError(t, chain.Unsubscribe("a/+"))
	client.AssertExpectations(t)
}

func TestChainedMQTTClient_Order(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Publish", "a/b", byte(0), false, "x").Return(mocks.NewCompletedToken(nil))

	var calls []string
	chain := NewChainedMQTTClient(client, []MQTTMiddleware{
		&recordingMiddleware{name: "first", calls: &calls},
		&recordingMiddleware{name: "second", calls: &calls},
	})

	assert.NoError(t, chain.Publish("a/b", 0, false, "x"))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestChainedMQTTClient_PublishError(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Publish", "a/b", byte(0), false, mock.Anything).Return(mocks.NewCompletedToken(errors.New("broker gone")))

	chain := NewChainedMQTTClient(client, []MQTTMiddleware{NewLoggingMiddleware(zerolog.Nop())})
	assert.EqualError(t, chain.Publish("a/b", 0, false, []byte("x")), "broker gone")
}

func TestChainedMQTTClient_PublishTimeout(t *testing.T) {
	token := new(mocks.MockToken)
	token.On("WaitTimeout", mock.Anything).Return(false)

	client := new(mocks.MockMQTTClient)
	client.On("Publish", "a/b", byte(0), false, mock.Anything).Return(token)

	chain := NewChainedMQTTClient(client, nil)
	assert.ErrorContains(t, chain.Publish("a/b", 0, false, []byte("x")), "timed out")
}

func TestMetricsMiddleware_CountsPublishes(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Publish", "ok/topic", byte(0), false, mock.Anything).Return(mocks.NewCompletedToken(nil))
	client.On("Publish", "bad/topic", byte(0), false, mock.Anything).Return(mocks.NewCompletedToken(errors.New("nope")))

	metrics := metrics_collectors.NewMetricsRegistry()
	chain := NewChainedMQTTClient(client, []MQTTMiddleware{
		NewLoggingMiddleware(zerolog.Nop()),
		NewMetricsMiddleware(metrics),
	})

	assert.NoError(t, chain.Publish("ok/topic", 0, false, []byte("1")))
	assert.NoError(t, chain.Publish("ok/topic", 0, false, []byte("2")))
	assert.Error(t, chain.Publish("bad/topic", 0, false, []byte("3")))

	expected := `
# HELP switchbot_bridge_mqtt_publish_total MQTT publish attempts.
# TYPE switchbot_bridge_mqtt_publish_total counter
switchbot_bridge_mqtt_publish_total{result="error"} 1
switchbot_bridge_mqtt_publish_total{result="ok"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "switchbot_bridge_mqtt_publish_total"))
}

func TestPayloadSize(t *testing.T) {
	assert.Equal(t, 3, payloadSize([]byte("abc")))
	assert.Equal(t, 2, payloadSize("ab"))
	assert.Equal(t, -1, payloadSize(42))
}
