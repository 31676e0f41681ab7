// Package docstore is the hierarchical document store used for every
// venuedesk entity: named collections of JSON documents addressed by
// slash-separated paths, with point reads and writes, equality queries over a
// collection or a collection group, and live subscriptions to single
// documents.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by stores. Callers surface their messages
// verbatim.
var (
	ErrNotFound         = errors.New("document not found")
	ErrAlreadyExists    = errors.New("document already exists")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidPath      = errors.New("invalid document path")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// Fields is the payload of a write.
type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp is replaced by the store's clock when a write is applied.
var ServerTimestamp any = serverTimestamp{}

// TimeLayout is the fixed-width UTC layout timestamps are stored in, so that
// lexical ordering of stored values matches chronological ordering.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Document is a stored document.
type Document struct {
	Ref        DocRef
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// DataTo decodes the document data into v, which should be a pointer to a
// struct with json tags.
func (d *Document) DataTo(v any) error {
	b, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", d.Ref.Path(), err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding %s: %w", d.Ref.Path(), err)
	}
	return nil
}

// Snapshot is one emission of a document watch. Doc is nil when the document
// does not exist; Err is set when the store failed to read it.
type Snapshot struct {
	Ref DocRef
	Doc *Document
	Err error
}

// Exists reports whether the snapshot carries a document.
func (s Snapshot) Exists() bool { return s.Doc != nil }

// SetOption changes how Set applies its payload.
type SetOption func(*setOptions)

type setOptions struct {
	merge bool
}

// Merge makes Set merge the payload into an existing document instead of
// replacing it.
func Merge() SetOption {
	return func(o *setOptions) { o.merge = true }
}

func applySetOptions(opts []SetOption) setOptions {
	var o setOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Store is the document store contract.
type Store interface {
	// Get reads a document. It returns ErrNotFound when the document does not
	// exist.
	Get(ctx context.Context, ref DocRef) (*Document, error)
	// Set writes a document, replacing it unless Merge is given.
	Set(ctx context.Context, ref DocRef, data Fields, opts ...SetOption) error
	// Create adds a document with a generated id to the collection.
	Create(ctx context.Context, coll CollectionRef, data Fields) (DocRef, error)
	// Update merges data into an existing document. It returns ErrNotFound
	// when the document does not exist.
	Update(ctx context.Context, ref DocRef, data Fields) error
	// Query returns the documents matching q.
	Query(ctx context.Context, q Query) ([]*Document, error)
	// Watch subscribes to a document. The current state is delivered first.
	Watch(ctx context.Context, ref DocRef) (*Watch, error)
}

// Option configures a store implementation.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the clock used to resolve ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// normalize resolves sentinels and converts data to plain JSON values.
func normalize(data Fields, now time.Time) (map[string]any, error) {
	resolved := make(map[string]any, len(data))
	for k, v := range data {
		if k == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidArgument)
		}
		resolved[k] = resolveValue(v, now)
	}
	b, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return out, nil
}

func resolveValue(v any, now time.Time) any {
	switch t := v.(type) {
	case serverTimestamp:
		return now.UTC().Format(TimeLayout)
	case time.Time:
		return t.UTC().Format(TimeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(TimeLayout)
	case Fields:
		return resolveMap(t, now)
	case map[string]any:
		return resolveMap(t, now)
	}
	return v
}

func resolveMap(m map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = resolveValue(v, now)
	}
	return out
}

// normalizeValue converts a single filter operand the same way stored data
// is converted.
func normalizeValue(v any) (any, error) {
	b, err := json.Marshal(resolveValue(v, time.Time{}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return out, nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	}
	return v
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
