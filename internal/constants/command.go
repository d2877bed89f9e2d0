package constants

import "time"

// Smart-lock command tokens with special routing.
const (
	// CommandStatus is routed to a GET on the device status endpoint instead of a command POST.
	CommandStatus = "status"

	// CommandTypeCommand is the commandType sent with every smart-lock command POST.
	CommandTypeCommand = "command"
)

// Generic command methods.
const (
	MethodGet  = "get"
	MethodPost = "post"
)

// Topic verbs.
const (
	VerbCommand  = "cmnd"
	VerbResponse = "response"
	VerbEvent    = "event"
)

// Webhook event constants.
const (
	// EventTypeChangeReport is the only webhook event type the bridge forwards.
	EventTypeChangeReport = "changeReport"

	DefaultWebhookPath = "/sb"
)

// Polling.
const (
	// MinPollingInterval is the floor applied to any positive polling interval.
	MinPollingInterval = 60 * time.Second

	// PollerStartupDelay gives the broker connection time to settle before the first tick.
	PollerStartupDelay = 10 * time.Second
)

// Router dispatch.
const (
	DefaultRouterWorkers   = 8
	DefaultRouterQueueSize = 64
)

// Vendor HTTP.
const (
	// VendorRequestTimeout bounds every vendor call. It is not configurable.
	VendorRequestTimeout = 30 * time.Second
)
