package docstore

import (
	"encoding/json"

	"github.com/cschjolb/seqflow/internal/txn"
)

// docRecord is the JSON envelope a Transaction is stored as. Events are
// stored as base64 (via encoding/json's []byte handling) rather than a
// custom varint-framed binary format, leaning into the document-store
// framing: every stored record is independently inspectable with a generic
// JSON tool, at the cost of some space next to a packed binary encoding.
type docRecord struct {
	TimestampMs int64             `json:"tsMs"`
	Category    string            `json:"category"`
	StreamID    string            `json:"streamId"`
	Revision    int32             `json:"revision"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Events      [][]byte          `json:"events,omitempty"`
}

func encodeTxn(t txn.Transaction) ([]byte, error) {
	r := docRecord{
		TimestampMs: t.TimestampMs,
		Category:    string(t.Category),
		StreamID:    string(t.StreamID),
		Revision:    t.Revision,
		Metadata:    t.Metadata,
		Events:      t.Events,
	}
	return json.Marshal(r)
}

func decodeTxn(b []byte) (txn.Transaction, error) {
	var r docRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return txn.Transaction{}, err
	}
	return txn.Transaction{
		TimestampMs: r.TimestampMs,
		Category:    txn.CAT(r.Category),
		StreamID:    txn.ID(r.StreamID),
		Revision:    r.Revision,
		Metadata:    r.Metadata,
		Events:      r.Events,
	}, nil
}
