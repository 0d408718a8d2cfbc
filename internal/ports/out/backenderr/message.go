// Package backenderr lets adapters hand the app layer the message a backend meant for display,
// without the app layer knowing which backend produced it.
package backenderr

import "errors"

// Messager is implemented by adapter errors that carry the backend's own message.
type Messager interface {
	BackendMessage() string
}

// Message returns the first non-empty backend message in err's chain, or err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var m Messager
	if errors.As(err, &m) {
		if msg := m.BackendMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}
