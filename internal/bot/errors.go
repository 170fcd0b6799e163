package bot

import (
	"errors"
	"fmt"
)

// ErrMalformedText is returned by a handler that choked on invalid text
// encoding in the event. The dispatcher responds by sanitizing the
// event's text fields and retrying that handler exactly once.
var ErrMalformedText = errors.New("malformed text in event")

// A RegistrationError reports an invalid handler declaration or plugin
// composition. These are programming errors detectable before any
// event flows, so registration aborts instead of misbehaving at
// runtime.
type RegistrationError struct {
	Plugin string
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("plugin %s: invalid registration: %s", e.Plugin, e.Reason)
}

// A ResourceError reports that a plugin failed to initialize its
// on-disk resources. The bot disables the plugin and keeps going.
type ResourceError struct {
	Plugin string
	Err    error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("plugin %s: resource initialization failed: %v", e.Plugin, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// A SettingError reports that a plugin rejected a setting value.
type SettingError struct {
	Plugin string
	Key    string
	Err    error
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("plugin %s: setting %q rejected: %v", e.Plugin, e.Key, e.Err)
}

func (e *SettingError) Unwrap() error { return e.Err }
