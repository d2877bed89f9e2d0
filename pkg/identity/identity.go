package identity

import (
	"slices"

	"github.com/benmeehan/switchbot-bridge/internal/utils"
)

// AllowListInterface answers whether a device, a smart-lock command or a device type is permitted.
type AllowListInterface interface {
	IsValidDevice(deviceID string) bool
	IsValidCommand(command string) bool
	IsSmartLockType(deviceType string) bool
	DeviceIDs() []string
}

// AllowList is the static, immutable set of devices and commands the bridge will act on.
type AllowList struct {
	deviceIDs           []string
	devices             map[string]struct{}
	commands            map[string]struct{}
	smartLockDeviceType string
}

// NewAllowList builds an AllowList. Inputs are copied; later changes to the slices have no effect.
// Matching is exact: device ids and command tokens are case-sensitive.
func NewAllowList(deviceIDs, commands []string, smartLockDeviceType string) *AllowList {
	return &AllowList{
		deviceIDs:           slices.Clone(deviceIDs),
		devices:             utils.SliceToSet(deviceIDs),
		commands:            utils.SliceToSet(commands),
		smartLockDeviceType: smartLockDeviceType,
	}
}

// IsValidDevice reports whether deviceID is in the device allow-list.
func (a *AllowList) IsValidDevice(deviceID string) bool {
	if deviceID == "" {
		return false
	}
	_, ok := a.devices[deviceID]
	return ok
}

// IsValidCommand reports whether command is in the smart-lock command allow-list.
func (a *AllowList) IsValidCommand(command string) bool {
	if command == "" {
		return false
	}
	_, ok := a.commands[command]
	return ok
}

// IsSmartLockType reports whether deviceType is the configured smart-lock device type.
func (a *AllowList) IsSmartLockType(deviceType string) bool {
	return deviceType != "" && deviceType == a.smartLockDeviceType
}

// DeviceIDs returns the allowed device ids in configuration order.
func (a *AllowList) DeviceIDs() []string {
	return slices.Clone(a.deviceIDs)
}
