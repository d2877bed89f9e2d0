// Package topics builds and parses the bridge's MQTT topics.
//
// Two families exist:
//
//	smart-lock: {smartlock-base}{device-id}/cmnd | /response | /event
//	generic:    {generic-base}cmnd | response
//
// Base topics are expected to end with "/" (the configuration layer normalizes them).
// An empty base disables its family.
package topics

import (
	"strings"

	"github.com/benmeehan/switchbot-bridge/internal/constants"
)

// Topics provides builders for the bridge's MQTT topics.
type Topics struct {
	SmartLockBase string
	GenericBase   string
}

// New creates a Topics for the given base topics.
func New(smartLockBase, genericBase string) Topics {
	return Topics{SmartLockBase: smartLockBase, GenericBase: genericBase}
}

// SmartLockCommandFilter returns the wildcard subscription for smart-lock commands.
//
// Example: smarthome/smartlock/+/cmnd
func (t Topics) SmartLockCommandFilter() string {
	return t.SmartLockBase + "+/" + constants.VerbCommand
}

// SmartLockCommand returns the command topic for a device.
func (t Topics) SmartLockCommand(deviceID string) string {
	return t.SmartLockBase + deviceID + "/" + constants.VerbCommand
}

// SmartLockResponse returns the response topic for a device.
func (t Topics) SmartLockResponse(deviceID string) string {
	return t.SmartLockBase + deviceID + "/" + constants.VerbResponse
}

// SmartLockEvent returns the webhook event topic for a device.
func (t Topics) SmartLockEvent(deviceID string) string {
	return t.SmartLockBase + deviceID + "/" + constants.VerbEvent
}

// GenericCommand returns the generic command topic.
func (t Topics) GenericCommand() string {
	return t.GenericBase + constants.VerbCommand
}

// GenericResponse returns the generic response topic.
func (t Topics) GenericResponse() string {
	return t.GenericBase + constants.VerbResponse
}

// IsSmartLock reports whether topic belongs to the smart-lock family.
func (t Topics) IsSmartLock(topic string) bool {
	return t.SmartLockBase != "" && strings.HasPrefix(topic, t.SmartLockBase)
}

// IsGeneric reports whether topic belongs to the generic family.
func (t Topics) IsGeneric(topic string) bool {
	return t.GenericBase != "" && strings.HasPrefix(topic, t.GenericBase)
}

// DeviceIDFromTopic extracts the device id segment of a smart-lock topic.
// The device id sits at the fixed segment position right after the base.
func (t Topics) DeviceIDFromTopic(topic string) (string, bool) {
	if !t.IsSmartLock(topic) {
		return "", false
	}
	idx := strings.Count(t.SmartLockBase, "/")
	segments := strings.Split(topic, "/")
	if len(segments) <= idx || segments[idx] == "" {
		return "", false
	}
	return segments[idx], true
}

// ResponseTopicFor derives the response topic of a smart-lock command topic by
// replacing its trailing verb segment with "response".
func (t Topics) ResponseTopicFor(commandTopic string) string {
	suffix := "/" + constants.VerbCommand
	if strings.HasSuffix(commandTopic, suffix) {
		return strings.TrimSuffix(commandTopic, suffix) + "/" + constants.VerbResponse
	}
	if id, ok := t.DeviceIDFromTopic(commandTopic); ok {
		return t.SmartLockResponse(id)
	}
	return ""
}
