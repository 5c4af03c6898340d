// Package docstore is the Pebble-backed, durable EventSource backing.
// Transactions are stored as JSON documents keyed two ways: by (streamId,
// revision) for point lookups and range replay, and by (timestamp,
// streamId, revision) for cross-category replay in commit order. Live
// subscription is poll-plus-notify.
package docstore
