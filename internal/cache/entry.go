package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

var (
	errMalformedEntry = errors.New("malformed cache entry")
	nullJSON          = []byte("null")
)

// entry is the persisted form: {"stored": <ms since epoch>, "value": ...}.
type entry struct {
	Stored int64           `json:"stored"`
	Value  json.RawMessage `json:"value"`
}

func encodeEntry(storedAt time.Time, value json.RawMessage) (string, error) {
	data, err := json.Marshal(entry{Stored: storedAt.UnixMilli(), Value: value})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeEntry(raw string) (entry, error) {
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return entry{}, err
	}
	if isNull(e.Value) {
		return entry{}, errMalformedEntry
	}
	return e, nil
}

func (e entry) storedAt() time.Time {
	return time.UnixMilli(e.Stored)
}

// fresh reports whether the entry is still within ttl at now. The boundary
// is inclusive and compared at the millisecond resolution stored entries
// carry.
func (e entry) fresh(now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-e.Stored <= ttl.Milliseconds()
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), nullJSON)
}
