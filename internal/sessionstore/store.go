// Package sessionstore replaces browser session and local storage with an
// injected key/value store scoped by namespace.
package sessionstore

import (
	"context"
	"errors"
)

// ErrCorrupt is returned when a stored value cannot be parsed.
var ErrCorrupt = errors.New("corrupt session value")

// Store is a namespaced string key/value store. Writes are last-write-wins.
type Store interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key, value string) error
	// Delete removes keys from a namespace, or the whole namespace when keys is empty.
	Delete(ctx context.Context, namespace string, keys ...string) error
}

// TabNamespace scopes values to one browser tab of a visitor.
func TabNamespace(visitorID, tabID string) string {
	return "tab:" + visitorID + ":" + tabID
}

// DeviceNamespace scopes values to every tab of a visitor.
func DeviceNamespace(visitorID string) string {
	return "device:" + visitorID
}
