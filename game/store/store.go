// Package store persists the handful of strings that survive a client
// restart: the active session id and the onboarding-seen flag.
package store

// Keys held in the store.
const (
	KeySessionID      = "council:session_id"
	KeyOnboardingSeen = "council:onboarding_seen"
)

// Store is a minimal key-value string store. A missing key returns
// ("", nil); errors are reserved for backend failures.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}
