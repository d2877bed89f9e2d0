package services

import "errors"

var (
	ErrInvalidDevice    = errors.New("invalid device id")
	ErrInvalidCommand   = errors.New("invalid command")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrInvalidTopic     = errors.New("invalid topic")
	ErrInvalidEvent     = errors.New("invalid webhook event")
	ErrUnexpectedStatus = errors.New("unexpected vendor status")
	ErrInvalidResponse  = errors.New("vendor response is not JSON")
	ErrPublishFailed    = errors.New("mqtt publish failed")
	ErrNotRunning       = errors.New("service is not running")
	ErrAlreadyRunning   = errors.New("service is already running")
)

// DeviceError reports a device id that is not in the allow-list.
type DeviceError struct {
	DeviceID string
}

func (e *DeviceError) Error() string {
	return "invalid device id " + e.DeviceID
}

func (e *DeviceError) Unwrap() error {
	return ErrInvalidDevice
}

// isValidationError reports whether err is a rejection of the input rather than a failure
// talking to the vendor or the broker.
func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidDevice) ||
		errors.Is(err, ErrInvalidCommand) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrInvalidTopic) ||
		errors.Is(err, ErrInvalidEvent)
}
