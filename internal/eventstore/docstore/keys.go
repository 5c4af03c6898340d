package docstore

import (
	"encoding/binary"

	"github.com/cschjolb/seqflow/internal/txn"
)

// Keyspace helpers for Pebble keys, lexicographically sortable.
//
// Layout:
// - stream/{streamId}/e/{revision_be4}   -> docRecord, primary per-stream index
// - ts/{ts_be8}/{streamId}/{revision_be4} -> docRecord, cross-category replay index
//
// Both keys store a full encoded copy of the transaction rather than one
// pointing at the other, so a range scan never has to parse a streamId back
// out of a composite key (a streamId containing the '/' separator would
// otherwise corrupt that decode).

var (
	sep       = byte('/')
	streamSeg = []byte("stream/")
	entrySeg  = []byte("/e/")
	tsPrefix  = []byte("ts/")
)

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// streamKey builds the primary key for a single (streamId, revision) entry.
func streamKey(id txn.ID, revision int32) []byte {
	k := make([]byte, 0, len(streamSeg)+len(id)+len(entrySeg)+4)
	k = append(k, streamSeg...)
	k = append(k, id...)
	k = append(k, entrySeg...)
	k = appendBE4(k, uint32(revision))
	return k
}

// tsKey builds the timestamp-ordered secondary index key.
func tsKey(tsMs int64, id txn.ID, revision int32) []byte {
	k := make([]byte, 0, len(tsPrefix)+8+1+len(id)+1+4)
	k = append(k, tsPrefix...)
	k = appendBE8(k, uint64(tsMs))
	k = append(k, sep)
	k = append(k, id...)
	k = append(k, sep)
	k = appendBE4(k, uint32(revision))
	return k
}

// tsLowerBound builds the inclusive lower bound for a timestamp-ordered scan
// starting at sinceMs. A negative sinceMs is treated as 0, since timestamps
// are encoded unsigned.
func tsLowerBound(sinceMs int64) []byte {
	if sinceMs < 0 {
		sinceMs = 0
	}
	k := make([]byte, 0, len(tsPrefix)+8)
	k = append(k, tsPrefix...)
	k = appendBE8(k, uint64(sinceMs))
	return k
}

// tsUpperBound builds the exclusive upper bound covering every timestamp key.
func tsUpperBound() []byte {
	k := make([]byte, 0, len(tsPrefix)+8)
	k = append(k, tsPrefix...)
	k = appendBE8(k, ^uint64(0))
	return append(k, 0xff)
}
