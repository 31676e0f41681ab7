package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRecord struct {
	ref     DocRef
	data    map[string]any
	created time.Time
	updated time.Time
	seq     uint64
}

// MemoryStore is an in-process Store. It backs tests and the "memory" store
// driver.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*memRecord
	seq  uint64
	now  func() time.Time
	hub  *hub
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		docs: make(map[string]*memRecord),
		now:  o.now,
		hub:  newHub(),
	}
}

func (m *MemoryStore) Get(ctx context.Context, ref DocRef) (*Document, error) {
	if err := validDoc(ref); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.docs[ref.Path()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref.Path(), ErrNotFound)
	}
	return rec.document(), nil
}

func (m *MemoryStore) Set(ctx context.Context, ref DocRef, data Fields, opts ...SetOption) error {
	if err := validDoc(ref); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	o := applySetOptions(opts)
	now := m.now()
	norm, err := normalize(data, now)
	if err != nil {
		return err
	}

	m.mu.Lock()
	rec, ok := m.docs[ref.Path()]
	switch {
	case ok && o.merge:
		for k, v := range norm {
			rec.data[k] = v
		}
		rec.updated = now
	case ok:
		rec.data = norm
		rec.updated = now
	default:
		m.insertLocked(ref, norm, now)
	}
	m.mu.Unlock()

	m.hub.publish(ref.Path())
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, coll CollectionRef, data Fields) (DocRef, error) {
	if err := validCollection(coll); err != nil {
		return DocRef{}, err
	}
	if err := ctx.Err(); err != nil {
		return DocRef{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return DocRef{}, fmt.Errorf("generating id: %w", err)
	}
	ref := coll.Doc(id.String())
	now := m.now()
	norm, err := normalize(data, now)
	if err != nil {
		return DocRef{}, err
	}

	m.mu.Lock()
	if _, exists := m.docs[ref.Path()]; exists {
		m.mu.Unlock()
		return DocRef{}, fmt.Errorf("%s: %w", ref.Path(), ErrAlreadyExists)
	}
	m.insertLocked(ref, norm, now)
	m.mu.Unlock()

	m.hub.publish(ref.Path())
	return ref, nil
}

func (m *MemoryStore) Update(ctx context.Context, ref DocRef, data Fields) error {
	if err := validDoc(ref); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := m.now()
	norm, err := normalize(data, now)
	if err != nil {
		return err
	}

	m.mu.Lock()
	rec, ok := m.docs[ref.Path()]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", ref.Path(), ErrNotFound)
	}
	for k, v := range norm {
		rec.data[k] = v
	}
	rec.updated = now
	m.mu.Unlock()

	m.hub.publish(ref.Path())
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filters, err := q.normalizedFilters()
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	var hits []*memRecord
	for _, rec := range m.docs {
		if !m.inTarget(rec, q) || !matches(rec.data, filters) {
			continue
		}
		if q.orderBy != "" {
			if _, ok := rec.data[q.orderBy]; !ok {
				continue
			}
		}
		hits = append(hits, rec)
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		c := 0
		if q.orderBy != "" {
			c = compareValues(a.data[q.orderBy], b.data[q.orderBy])
		}
		if c == 0 {
			if a.seq < b.seq {
				c = -1
			} else if a.seq > b.seq {
				c = 1
			}
		}
		if q.dir == Desc {
			return c > 0
		}
		return c < 0
	})
	if q.limit > 0 && len(hits) > q.limit {
		hits = hits[:q.limit]
	}

	out := make([]*Document, len(hits))
	for i, rec := range hits {
		out[i] = rec.document()
	}
	m.mu.RUnlock()
	return out, nil
}

func (m *MemoryStore) Watch(ctx context.Context, ref DocRef) (*Watch, error) {
	if err := validDoc(ref); err != nil {
		return nil, err
	}
	return startWatch(ctx, ref, m.hub, func(ctx context.Context) Snapshot {
		doc, err := m.Get(ctx, ref)
		if err != nil {
			if isNotFound(err) {
				return Snapshot{Ref: ref}
			}
			return Snapshot{Ref: ref, Err: err}
		}
		return Snapshot{Ref: ref, Doc: doc}
	}), nil
}

// ActiveWatches returns the number of live document watches.
func (m *MemoryStore) ActiveWatches() int { return m.hub.active() }

func (m *MemoryStore) insertLocked(ref DocRef, data map[string]any, now time.Time) {
	m.seq++
	m.docs[ref.Path()] = &memRecord{
		ref:     ref,
		data:    data,
		created: now,
		updated: now,
		seq:     m.seq,
	}
}

func (m *MemoryStore) inTarget(rec *memRecord, q Query) bool {
	parent := rec.ref.Parent()
	if q.group != "" {
		return parent.ID() == q.group
	}
	return parent.Path() == q.collection.Path()
}

func (r *memRecord) document() *Document {
	return &Document{
		Ref:        r.ref,
		Data:       copyMap(r.data),
		CreateTime: r.created,
		UpdateTime: r.updated,
	}
}
