package models

// WebhookEvent is the subset of a vendor webhook event the bridge inspects.
// The full body is forwarded untouched; these fields only drive validation.
type WebhookEvent struct {
	EventType string          `json:"eventType"`
	Context   *WebhookContext `json:"context"`
}

// WebhookContext describes the device that produced a webhook event.
type WebhookContext struct {
	DeviceType string `json:"deviceType"`
	DeviceMac  string `json:"deviceMac"`
}

// StatusReply is the JSON body of a successful HTTP reply.
type StatusReply struct {
	Status string `json:"status"`
}

// ErrorReply is the JSON body of a rejected HTTP request.
type ErrorReply struct {
	Error string `json:"error"`
}
