package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel is the Postgres channel the documents trigger publishes
// changed paths on.
const NotifyChannel = "document_changes"

const pgErrCodeUniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore keeps documents in the documents table, one row per path with
// the payload in a JSONB column.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
	hub  *hub

	listenOnce sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewPostgresStore returns a store backed by pool. Call Close to stop the
// change listener.
func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	o := buildOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	return &PostgresStore{
		pool:   pool,
		now:    o.now,
		hub:    newHub(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close stops the change listener. Active watches end once their contexts
// are cancelled.
func (s *PostgresStore) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *PostgresStore) Get(ctx context.Context, ref DocRef) (*Document, error) {
	if err := validDoc(ref); err != nil {
		return nil, err
	}
	query, args, err := psql.
		Select("path", "data", "created_at", "updated_at").
		From("documents").
		Where(sq.Eq{"path": ref.Path()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get: %w", err)
	}
	doc, err := scanDocument(s.pool.QueryRow(ctx, query, args...).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", ref.Path(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", ref.Path(), err)
	}
	return doc, nil
}

func (s *PostgresStore) Set(ctx context.Context, ref DocRef, data Fields, opts ...SetOption) error {
	if err := validDoc(ref); err != nil {
		return err
	}
	o := applySetOptions(opts)
	payload, err := s.encode(data)
	if err != nil {
		return err
	}

	conflict := "ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at"
	if o.merge {
		conflict = "ON CONFLICT (path) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = EXCLUDED.updated_at"
	}
	query, args, err := insertDocument(ref, payload, s.now()).Suffix(conflict).ToSql()
	if err != nil {
		return fmt.Errorf("building set: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("setting %s: %w", ref.Path(), mapPgError(err))
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, coll CollectionRef, data Fields) (DocRef, error) {
	if err := validCollection(coll); err != nil {
		return DocRef{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return DocRef{}, fmt.Errorf("generating id: %w", err)
	}
	ref := coll.Doc(id.String())
	payload, err := s.encode(data)
	if err != nil {
		return DocRef{}, err
	}
	query, args, err := insertDocument(ref, payload, s.now()).ToSql()
	if err != nil {
		return DocRef{}, fmt.Errorf("building create: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return DocRef{}, fmt.Errorf("creating %s: %w", ref.Path(), mapPgError(err))
	}
	return ref, nil
}

func (s *PostgresStore) Update(ctx context.Context, ref DocRef, data Fields) error {
	if err := validDoc(ref); err != nil {
		return err
	}
	payload, err := s.encode(data)
	if err != nil {
		return err
	}
	query, args, err := psql.
		Update("documents").
		Set("data", sq.Expr("data || ?::jsonb", string(payload))).
		Set("updated_at", s.now().UTC()).
		Where(sq.Eq{"path": ref.Path()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating %s: %w", ref.Path(), mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", ref.Path(), ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	query, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Watch(ctx context.Context, ref DocRef) (*Watch, error) {
	if err := validDoc(ref); err != nil {
		return nil, err
	}
	s.listenOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.listen(s.ctx)
		}()
	})
	return startWatch(ctx, ref, s.hub, func(ctx context.Context) Snapshot {
		doc, err := s.Get(ctx, ref)
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
func (s *PostgresStore) ActiveWatches() int { return s.hub.active() }

// listen holds one pooled connection on LISTEN and republishes every changed
// path to the hub. Lost connections are re-established after a pause.
func (s *PostgresStore) listen(ctx context.Context) {
	for {
		err := s.listenConn(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Error("document change listener stopped", "error", err)
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return
		}
	}
}

func (s *PostgresStore) listenConn(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listening on %s: %w", NotifyChannel, err)
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.hub.publish(n.Payload)
	}
}

func (s *PostgresStore) encode(data Fields) ([]byte, error) {
	norm, err := normalize(data, s.now())
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(norm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return payload, nil
}

func insertDocument(ref DocRef, payload []byte, now time.Time) sq.InsertBuilder {
	parent := ref.Parent()
	return psql.
		Insert("documents").
		Columns("path", "parent_path", "collection", "doc_id", "data", "created_at", "updated_at").
		Values(ref.Path(), parent.Path(), parent.ID(), ref.ID(), sq.Expr("?::jsonb", string(payload)), now.UTC(), now.UTC())
}

// buildSelect translates q into SQL. Equality predicates become JSONB
// containment tests so the GIN index on data serves them: one test holding
// every field, plus one more per repeated predicate on a field, so that all
// predicates must hold as they do in the memory store.
func buildSelect(q Query) (string, []any, error) {
	if err := q.validate(); err != nil {
		return "", nil, err
	}
	filters, err := q.normalizedFilters()
	if err != nil {
		return "", nil, err
	}

	b := psql.Select("path", "data", "created_at", "updated_at").From("documents")
	if q.group != "" {
		b = b.Where(sq.Eq{"collection": q.group})
	} else {
		b = b.Where(sq.Eq{"parent_path": q.collection.Path()})
	}
	for _, contains := range containment(filters) {
		payload, err := json.Marshal(contains)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		b = b.Where("data @> ?::jsonb", string(payload))
	}
	if q.orderBy != "" {
		b = b.Where("data -> ? IS NOT NULL", q.orderBy).
			OrderBy(
				fmt.Sprintf(`data ->> '%s' COLLATE "C" %s`, q.orderBy, q.dir),
				"seq "+q.dir.String(),
			)
	} else {
		b = b.OrderBy("seq " + q.dir.String())
	}
	if q.limit > 0 {
		b = b.Limit(uint64(q.limit))
	}
	return b.ToSql()
}

// containment splits filters into containment objects; the nth predicate on
// a field lands in the nth object.
func containment(filters []Filter) []map[string]any {
	var out []map[string]any
	seen := make(map[string]int, len(filters))
	for _, f := range filters {
		n := seen[f.Field]
		seen[f.Field] = n + 1
		if n == len(out) {
			out = append(out, make(map[string]any))
		}
		out[n][f.Field] = f.Value
	}
	return out
}

func scanDocument(scan func(dest ...any) error) (*Document, error) {
	var (
		path    string
		raw     []byte
		created time.Time
		updated time.Time
	)
	if err := scan(&path, &raw, &created, &updated); err != nil {
		return nil, err
	}
	ref, err := ParseDoc(path)
	if err != nil {
		return nil, err
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &Document{Ref: ref, Data: data, CreateTime: created, UpdateTime: updated}, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrCodeUniqueViolation {
		return ErrAlreadyExists
	}
	return err
}
