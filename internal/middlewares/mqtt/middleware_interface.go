package mqtt_middleware

import mqttLib "github.com/eclipse/paho.mqtt.golang"

// Client is the MQTT surface the bridge services use.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) error
	Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTMiddleware defines the contract for MQTT middleware.
type MQTTMiddleware interface {
	Client
	SetNext(next MQTTMiddleware)
}
