package cache

import "time"

// Cache is a TTL key/value cache for lookups that rarely change, such as bidder profiles.
type Cache interface {
	// Get returns (value, true) on a hit and (nil, false) on a miss.
	Get(key string) (interface{}, bool)

	// Set stores a value with a TTL. It may return false if the value was dropped on admission.
	Set(key string, value interface{}, ttl time.Duration) bool

	Delete(key string)

	Clear()

	// Close releases cache resources.
	Close()
}
