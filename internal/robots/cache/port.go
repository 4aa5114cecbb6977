package cache

// Cache is the storage port for robots.txt results. Keys and values are
// plain strings; implementations own serialization. Entries live for
// the duration of one archiving session, there is no persistence.
type Cache interface {
	// Get returns the cached value and true when the key exists.
	Get(key string) (string, bool)

	// Put stores a key-value pair, overwriting any existing value.
	Put(key string, value string)
}
