package mqtt_middleware

import (
	"fmt"
	"time"

	"github.com/benmeehan/switchbot-bridge/internal/constants"
	"github.com/benmeehan/switchbot-bridge/pkg/mqtt"
	mqttLib "github.com/eclipse/paho.mqtt.golang"
)

// ChainedMQTTClient wraps an MQTT client with a middleware chain.
type ChainedMQTTClient struct {
	middlewares []MQTTMiddleware
	head        MQTTMiddleware
}

// NewChainedMQTTClient creates a new chained MQTT client.
func NewChainedMQTTClient(mqttClient mqtt.MQTTClient, middlewares []MQTTMiddleware) *ChainedMQTTClient {
	direct := &directMQTTClient{mqttClient: mqttClient, timeout: constants.MQTTOperationTimeout}

	for i := 0; i < len(middlewares)-1; i++ {
		middlewares[i].SetNext(middlewares[i+1])
	}
	var head MQTTMiddleware = direct
	if len(middlewares) > 0 {
		middlewares[len(middlewares)-1].SetNext(direct)
		head = middlewares[0]
	}
	return &ChainedMQTTClient{
		middlewares: middlewares,
		head:        head,
	}
}

// Publish sends a message through the middleware chain.
func (c *ChainedMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	return c.head.Publish(topic, qos, retained, payload)
}

// Subscribe subscribes through the middleware chain.
func (c *ChainedMQTTClient) Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) error {
	return c.head.Subscribe(topic, qos, callback)
}

// Unsubscribe unsubscribes through the middleware chain.
func (c *ChainedMQTTClient) Unsubscribe(topics ...string) error {
	return c.head.Unsubscribe(topics...)
}

// SetNext implements the MQTTMiddleware interface (no-op for the chain entry point).
func (c *ChainedMQTTClient) SetNext(next MQTTMiddleware) {}

// Len returns the number of middlewares in the chain.
func (c *ChainedMQTTClient) Len() int {
	return len(c.middlewares)
}

// directMQTTClient terminates the chain and delegates to the MQTT client.
type directMQTTClient struct {
	mqttClient mqtt.MQTTClient
	timeout    time.Duration
}

func (d *directMQTTClient) SetNext(_ MQTTMiddleware) {}

func (d *directMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	return d.wait("publish", d.mqttClient.Publish(topic, qos, retained, payload))
}

func (d *directMQTTClient) Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) error {
	return d.wait("subscribe", d.mqttClient.Subscribe(topic, qos, callback))
}

func (d *directMQTTClient) Unsubscribe(topics ...string) error {
	return d.wait("unsubscribe", d.mqttClient.Unsubscribe(topics...))
}

func (d *directMQTTClient) wait(op string, token mqttLib.Token) error {
	if !token.WaitTimeout(d.timeout) {
		return fmt.Errorf("mqtt %s timed out after %v", op, d.timeout)
	}
	return token.Error()
}
