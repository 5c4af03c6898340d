package docstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/cschjolb/seqflow/internal/eventstore"
	"github.com/cschjolb/seqflow/internal/txn"
)

// Filter wraps a compiled CEL expression for ad-hoc transaction filtering —
// category/metadata predicates beyond the coarse CategoryFilter the core
// EventSource contract exposes, applied to replay and subscribe through
// FilteredSource.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// CompileFilter compiles expr. An empty or all-whitespace expr yields a
// Filter whose Match always returns true.
func CompileFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{enabled: false}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("category", cel.StringType),
		cel.Variable("stream_id", cel.StringType),
		cel.Variable("revision", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		// Parsed JSON of the first event, for field-level filtering.
		cel.Variable("json", cel.DynType),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true}, nil
}

// Match evaluates the compiled expression against t. A disabled filter (the
// zero value, or one built from an empty expression) always matches.
// Evaluation errors are treated as non-matches rather than propagated, so a
// malformed document never leaks through a filter meant to exclude it.
func (f Filter) Match(t txn.Transaction) bool {
	if !f.enabled {
		return true
	}

	var firstEvent []byte
	if len(t.Events) > 0 {
		firstEvent = t.Events[0]
	}
	var jsonObj any
	_ = json.Unmarshal(firstEvent, &jsonObj)

	metadata := t.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	out, _, err := f.prog.Eval(map[string]any{
		"category":  string(t.Category),
		"stream_id": string(t.StreamID),
		"revision":  int64(t.Revision),
		"ts_ms":     t.TimestampMs,
		"size":      int64(len(firstEvent)),
		"text":      string(firstEvent),
		"json":      jsonObj,
		"metadata":  metadata,
		"now_ms":    time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// FilteredSource decorates an EventSource, applying an additional CEL
// predicate to every transaction it would otherwise deliver through
// Subscribe/Replay/ReplayFrom/ReplayStreamRange. Used to expose ad-hoc
// category/metadata/payload filtering (the CLI's --filter flag) on top of
// the coarse CategoryFilter the core EventSource contract offers.
type FilteredSource struct {
	eventstore.EventSource
	filter Filter
}

// NewFilteredSource wraps src with filter. If filter is disabled (the zero
// value, or one built from an empty expression), src is returned unwrapped.
func NewFilteredSource(src eventstore.EventSource, filter Filter) eventstore.EventSource {
	if !filter.enabled {
		return src
	}
	return &FilteredSource{EventSource: src, filter: filter}
}

// Subscribe implements eventstore.EventSource.
func (s *FilteredSource) Subscribe(ctx context.Context, filter eventstore.CategoryFilter, sink func(txn.Transaction)) (eventstore.Subscription, error) {
	return s.EventSource.Subscribe(ctx, filter, func(t txn.Transaction) {
		if s.filter.Match(t) {
			sink(t)
		}
	})
}

// Replay implements eventstore.EventSource.
func (s *FilteredSource) Replay(ctx context.Context, categories []txn.CAT, handle func(eventstore.Iterator) error) error {
	return s.EventSource.Replay(ctx, categories, func(it eventstore.Iterator) error {
		return handle(&filteredIterator{it: it, filter: s.filter})
	})
}

// ReplayFrom implements eventstore.EventSource.
func (s *FilteredSource) ReplayFrom(ctx context.Context, sinceMs int64, categories []txn.CAT, handle func(eventstore.Iterator) error) error {
	return s.EventSource.ReplayFrom(ctx, sinceMs, categories, func(it eventstore.Iterator) error {
		return handle(&filteredIterator{it: it, filter: s.filter})
	})
}

// ReplayStreamRange implements eventstore.EventSource.
func (s *FilteredSource) ReplayStreamRange(ctx context.Context, id txn.ID, lo, hi int32, handle func(eventstore.Iterator) error) error {
	return s.EventSource.ReplayStreamRange(ctx, id, lo, hi, func(it eventstore.Iterator) error {
		return handle(&filteredIterator{it: it, filter: s.filter})
	})
}

// filteredIterator skips entries the wrapped Filter rejects.
type filteredIterator struct {
	it     eventstore.Iterator
	filter Filter
}

func (fi *filteredIterator) Next() (txn.Transaction, bool, error) {
	for {
		t, ok, err := fi.it.Next()
		if !ok || err != nil {
			return t, ok, err
		}
		if fi.filter.Match(t) {
			return t, true, nil
		}
	}
}
