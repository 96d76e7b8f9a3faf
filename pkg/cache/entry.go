package cache

import (
	"encoding/json"
	"time"
)

// Entry is one cached value.
type Entry struct {
	// Data is the JSON encoding of the cached value.
	Data json.RawMessage `json:"data"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was written.
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry encodes value into an entry that lives for ttl.
func NewEntry(value any, ttl time.Duration) (*Entry, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Entry{Data: data, Expires: now.Add(ttl), CachedAt: now}, nil
}

// Decode unmarshals the entry's data into dst.
func (e *Entry) Decode(dst any) error {
	return json.Unmarshal(e.Data, dst)
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
