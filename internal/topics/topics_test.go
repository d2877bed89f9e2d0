package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopics_Builders(t *testing.T) {
	tp := New("smarthome/smartlock/", "switchbot/api/generic/")

	assert.Equal(t, "smarthome/smartlock/+/cmnd", tp.SmartLockCommandFilter())
	assert.Equal(t, "smarthome/smartlock/ABC123/cmnd", tp.SmartLockCommand("ABC123"))
	assert.Equal(t, "smarthome/smartlock/ABC123/response", tp.SmartLockResponse("ABC123"))
	assert.Equal(t, "smarthome/smartlock/ABC123/event", tp.SmartLockEvent("ABC123"))
	assert.Equal(t, "switchbot/api/generic/cmnd", tp.GenericCommand())
	assert.Equal(t, "switchbot/api/generic/response", tp.GenericResponse())
}

func TestTopics_Families(t *testing.T) {
	tp := New("smarthome/smartlock/", "switchbot/api/generic/")

	assert.True(t, tp.IsSmartLock("smarthome/smartlock/ABC123/cmnd"))
	assert.False(t, tp.IsSmartLock("switchbot/api/generic/cmnd"))
	assert.True(t, tp.IsGeneric("switchbot/api/generic/cmnd"))
	assert.False(t, tp.IsGeneric("smarthome/smartlock/ABC123/cmnd"))

	disabled := New("", "")
	assert.False(t, disabled.IsSmartLock("anything"))
	assert.False(t, disabled.IsGeneric("anything"))
}

func TestTopics_DeviceIDFromTopic(t *testing.T) {
	tp := New("smarthome/smartlock/", "switchbot/api/generic/")

	id, ok := tp.DeviceIDFromTopic("smarthome/smartlock/ABC123/cmnd")
	assert.True(t, ok)
	assert.Equal(t, "ABC123", id)

	_, ok = tp.DeviceIDFromTopic("smarthome/smartlock/")
	assert.False(t, ok)

	_, ok = tp.DeviceIDFromTopic("other/ABC123/cmnd")
	assert.False(t, ok)

	deep := New("home/a/b/locks/", "")
	id, ok = deep.DeviceIDFromTopic("home/a/b/locks/XYZ/cmnd")
	assert.True(t, ok)
	assert.Equal(t, "XYZ", id)
}

func TestTopics_ResponseTopicFor(t *testing.T) {
	tp := New("smarthome/smartlock/", "")

	assert.Equal(t, "smarthome/smartlock/ABC123/response", tp.ResponseTopicFor("smarthome/smartlock/ABC123/cmnd"))
	assert.Equal(t, "smarthome/smartlock/ABC123/response", tp.ResponseTopicFor("smarthome/smartlock/ABC123/other"))
	assert.Equal(t, "", tp.ResponseTopicFor("unrelated"))
}
