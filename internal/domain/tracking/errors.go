package tracking

import "errors"

var (
	ErrProviderUnavailable     = errors.New("location provider unavailable")
	ErrNotificationSetupFailed = errors.New("notification setup failed")
	ErrUnsupportedCommand      = errors.New("unsupported command")
	ErrControllerNotCreated    = errors.New("tracking controller not created")
	ErrControllerDestroyed     = errors.New("tracking controller destroyed")
)
