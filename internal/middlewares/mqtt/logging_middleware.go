package mqtt_middleware

import (
	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// LoggingMiddleware logs every MQTT operation passing through the chain.
// Payloads are never logged, only their size.
type LoggingMiddleware struct {
	next   MQTTMiddleware
	logger zerolog.Logger
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

func (l *LoggingMiddleware) SetNext(next MQTTMiddleware) {
	l.next = next
}

func (l *LoggingMiddleware) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	err := l.next.Publish(topic, qos, retained, payload)
	event := l.logger.Debug()
	if err != nil {
		event = l.logger.Error().Err(err)
	}
	event.Str("topic", topic).Uint8("qos", qos).Int("bytes", payloadSize(payload)).Msg("MQTT publish")
	return err
}

func (l *LoggingMiddleware) Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) error {
	err := l.next.Subscribe(topic, qos, callback)
	if err != nil {
		l.logger.Error().Err(err).Str("topic", topic).Msg("MQTT subscribe failed")
		return err
	}
	l.logger.Info().Str("topic", topic).Uint8("qos", qos).Msg("MQTT subscribed")
	return nil
}

func (l *LoggingMiddleware) Unsubscribe(topics ...string) error {
	err := l.next.Unsubscribe(topics...)
	if err != nil {
		l.logger.Error().Err(err).Strs("topics", topics).Msg("MQTT unsubscribe failed")
		return err
	}
	l.logger.Info().Strs("topics", topics).Msg("MQTT unsubscribed")
	return nil
}

func payloadSize(payload interface{}) int {
	switch p := payload.(type) {
	case []byte:
		return len(p)
	case string:
		return len(p)
	default:
		return -1
	}
}
