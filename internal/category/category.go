// Package category tracks known event categories and their provisioning
// defaults: partition count, payload/headers byte caps.
package category

import (
	"encoding/json"
	"time"

	pebblestore "github.com/cschjolb/seqflow/internal/storage/pebble"
	"github.com/cschjolb/seqflow/internal/txn"
)

// Meta holds per-category metadata and provisioning defaults.
type Meta struct {
	Name            string `json:"name"`
	CreatedAtMs     int64  `json:"createdAtMs"`
	Partitions      int    `json:"partitions"`
	PayloadMaxBytes int    `json:"payloadMaxBytes"`
	HeadersMaxBytes int    `json:"headersMaxBytes"`
}

// Defaults returns opinionated defaults for a newly seen category.
func Defaults() Meta {
	return Meta{
		Partitions:      16,
		PayloadMaxBytes: 1 << 20,  // 1 MiB
		HeadersMaxBytes: 16 << 10, // 16 KiB
	}
}

var metaPrefix = []byte("catmeta/")

func metaKey(cat txn.CAT) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(cat))
	k = append(k, metaPrefix...)
	k = append(k, cat...)
	return k
}

// Ensure creates a category metadata record if absent, returning the
// effective metadata. Idempotent: returns the existing record if present.
func Ensure(db *pebblestore.DB, cat txn.CAT) (Meta, error) {
	key := metaKey(cat)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
		// Corrupted record: fall through and rewrite it.
	}
	m := Defaults()
	m.Name = string(cat)
	m.CreatedAtMs = time.Now().UnixMilli()
	bytes, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, bytes); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// Lookup returns a category's metadata if it has been provisioned.
func Lookup(db *pebblestore.DB, cat txn.CAT) (Meta, bool, error) {
	b, err := db.Get(metaKey(cat))
	if err != nil {
		return Meta{}, false, nil
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, false, err
	}
	return m, true, nil
}
