package models

import "encoding/json"

// LockCommandRequest is the body posted to devices/{id}/commands for a smart-lock command.
type LockCommandRequest struct {
	Command     string `json:"command"`     // Lower-cased command token, e.g. "lock".
	CommandType string `json:"commandType"` // Always "command" for smart-lock commands.
}

// GenericCommand is the payload accepted on the generic command topic.
// It carries an arbitrary vendor service path, the HTTP method and an optional body.
type GenericCommand struct {
	Method  string          `json:"method"`            // "get" or "post"
	Service string          `json:"service"`           // Vendor path relative to the API base URL
	Payload json.RawMessage `json:"payload,omitempty"` // Forwarded verbatim on "post"
}
