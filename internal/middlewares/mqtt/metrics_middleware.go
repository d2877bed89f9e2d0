package mqtt_middleware

import (
	"github.com/benmeehan/switchbot-bridge/internal/metrics_collectors"
	mqttLib "github.com/eclipse/paho.mqtt.golang"
)

// MetricsMiddleware counts publish outcomes.
type MetricsMiddleware struct {
	next    MQTTMiddleware
	metrics *metrics_collectors.MetricsRegistry
}

// NewMetricsMiddleware creates a new metrics middleware.
func NewMetricsMiddleware(metrics *metrics_collectors.MetricsRegistry) *MetricsMiddleware {
	return &MetricsMiddleware{metrics: metrics}
}

func (m *MetricsMiddleware) SetNext(next MQTTMiddleware) {
	m.next = next
}

func (m *MetricsMiddleware) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	if err := m.next.Publish(topic, qos, retained, payload); err != nil {
		m.metrics.MQTTPublish(metrics_collectors.ResultError)
		return err
	}
	m.metrics.MQTTPublish(metrics_collectors.ResultOK)
	return nil
}

func (m *MetricsMiddleware) Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) error {
	return m.next.Subscribe(topic, qos, callback)
}

func (m *MetricsMiddleware) Unsubscribe(topics ...string) error {
	return m.next.Unsubscribe(topics...)
}
