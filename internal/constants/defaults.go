package constants

import "time"

// Version of the bridge, reported in the startup banner.
const Version = "1.0.0"

// Configuration defaults, matching the environment defaults of existing deployments.
const (
	DefaultMQTTBroker          = "localhost"
	DefaultMQTTPort            = 1883
	DefaultMQTTClientID        = "switchbot_api2mqtt"
	DefaultSmartLockBaseTopic  = "smarthome/smartlock/"
	DefaultGenericBaseTopic    = "switchbot/api/generic/"
	DefaultAPIBaseURL          = "https://api.switch-bot.com/v1.1/"
	DefaultSmartLockDeviceType = "WoLockPro"
	DefaultWebhookListenAddr   = ":80"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"

	// MinSignedAPIVersion is the first vendor API version that accepts signed headers.
	MinSignedAPIVersion = "1.1"
)

// Shutdown timings.
const (
	MQTTDisconnectQuiesce    = 250 // milliseconds
	WebhookShutdownTimeout   = 10 * time.Second
	MQTTConnectTimeout       = 10 * time.Second
	MQTTOperationTimeout     = 5 * time.Second
	WebhookReadHeaderTimeout = 10 * time.Second
)

// Middleware names.
const (
	LOGGING_MIDDLEWARE = "logging"
	METRICS_MIDDLEWARE = "metrics"
)
