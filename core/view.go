package core

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/shrek82/torm/model"
	"github.com/shrek82/torm/query"
)

// View is the CRUD facade for one model type. Every operation is a single
// round trip through the DB; creating the View issues CREATE TABLE IF NOT
// EXISTS once. Results are sets: duplicate rows collapse and order is not
// guaranteed.
//
// Multi-row operations are not atomic. PutMany writes one model per
// statement and stops at the first failure, keeping what was written.
type View[M any] struct {
	db     *DB
	schema *model.Schema[M]
}

// NewView looks up M in the registry and makes sure its table exists.
func NewView[M any](ctx context.Context, db *DB, r *model.Registry) (*View[M], error) {
	s, err := model.SchemaOf[M](r)
	if err != nil {
		return nil, err
	}
	stmt, err := db.builder.CreateTable(s)
	if err != nil {
		return nil, err
	}
	if _, err := db.Run(ctx, stmt); err != nil {
		return nil, err
	}
	return &View[M]{db: db, schema: s}, nil
}

// Schema returns the schema the view works with.
func (v *View[M]) Schema() *model.Schema[M] {
	return v.schema
}

// GetMany returns the models matching q.
func (v *View[M]) GetMany(ctx context.Context, q query.Query) ([]*M, error) {
	stmt, err := v.db.builder.Select(v.schema, q)
	if err != nil {
		return nil, err
	}
	return v.fetch(ctx, stmt)
}

// Get returns the stored model with m's primary key, or nil when there is none.
func (v *View[M]) Get(ctx context.Context, m *M) (*M, error) {
	q, err := model.PrimaryKeyPredicate(v.schema, m)
	if err != nil {
		return nil, err
	}
	ms, err := v.GetMany(ctx, q)
	return first(ms), err
}

// PutMany inserts or updates each model in turn and returns the stored rows.
// On failure it returns the rows already written together with the error.
func (v *View[M]) PutMany(ctx context.Context, ms ...*M) ([]*M, error) {
	set := newRowSet[M](len(ms))
	for _, m := range ms {
		stmt, err := v.upsert(m)
		if err != nil {
			return set.items, err
		}
		if err := v.collect(ctx, stmt, set); err != nil {
			return set.items, err
		}
	}
	return set.items, nil
}

// Put inserts or updates m and returns the stored row.
func (v *View[M]) Put(ctx context.Context, m *M) (*M, error) {
	ms, err := v.PutMany(ctx, m)
	return first(ms), err
}

// DeleteMany removes the rows matching q and returns them.
func (v *View[M]) DeleteMany(ctx context.Context, q query.Query) ([]*M, error) {
	stmt, err := v.db.builder.Delete(v.schema, q)
	if err != nil {
		return nil, err
	}
	return v.fetch(ctx, stmt)
}

// Delete removes the row with m's primary key and returns it, or nil when
// nothing matched.
func (v *View[M]) Delete(ctx context.Context, m *M) (*M, error) {
	q, err := model.PrimaryKeyPredicate(v.schema, m)
	if err != nil {
		return nil, err
	}
	ms, err := v.DeleteMany(ctx, q)
	return first(ms), err
}

func (v *View[M]) upsert(m *M) (*Statement, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilModel, v.schema.TableName())
	}
	if h, ok := any(m).(BeforePutter); ok {
		if err := h.BeforePut(); err != nil {
			return nil, err
		}
	}
	if err := v.schema.Validate(m); err != nil {
		return nil, err
	}
	values, err := v.schema.ExtractFields(m)
	if err != nil {
		return nil, err
	}
	return v.db.builder.Upsert(v.schema, values)
}

func (v *View[M]) fetch(ctx context.Context, stmt *Statement) ([]*M, error) {
	set := newRowSet[M](0)
	err := v.collect(ctx, stmt, set)
	if err != nil && len(set.items) == 0 {
		return nil, err
	}
	return set.items, err
}

// collect runs stmt and adds the models built from its rows to set. Rows a
// middleware returns along with an error are kept; the error is still returned.
func (v *View[M]) collect(ctx context.Context, stmt *Statement, set *rowSet[M]) error {
	res, runErr := v.db.Run(ctx, stmt)
	if res.Len() == 0 {
		return runErr
	}

	cols := v.schema.Columns()
	// position of each result column in the schema, -1 when unknown
	pos := make([]int, len(res.Columns))
	for j, name := range res.Columns {
		i, ok := v.schema.ColumnIndex(name)
		if !ok {
			i = -1
		}
		pos[j] = i
	}

	for _, row := range res.Rows {
		values := make([]any, len(cols))
		for j, raw := range row {
			i := pos[j]
			if i < 0 {
				continue
			}
			val, err := cols[i].Deserialize(raw)
			if err != nil {
				return fmt.Errorf("torm: %s: %w", v.schema.TableName(), err)
			}
			values[i] = val
		}
		if err := set.add(values, v.construct); err != nil {
			return err
		}
	}
	return runErr
}

func (v *View[M]) construct(values []any) (*M, error) {
	m, err := v.schema.Construct(values)
	if err != nil {
		return nil, err
	}
	if h, ok := any(m).(AfterFinder); ok {
		if err := h.AfterFind(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// rowSet keeps the first model built for each distinct row.
type rowSet[M any] struct {
	seen  map[string]struct{}
	items []*M
}

func newRowSet[M any](n int) *rowSet[M] {
	return &rowSet[M]{
		seen:  make(map[string]struct{}, n),
		items: make([]*M, 0, n),
	}
}

func (s *rowSet[M]) add(values []any, construct func([]any) (*M, error)) error {
	key, err := msgpack.Marshal(values)
	if err != nil {
		return fmt.Errorf("torm: row key: %w", err)
	}
	if _, dup := s.seen[string(key)]; dup {
		return nil
	}
	m, err := construct(values)
	if err != nil {
		return err
	}
	s.seen[string(key)] = struct{}{}
	s.items = append(s.items, m)
	return nil
}

func first[M any](ms []*M) *M {
	if len(ms) == 0 {
		return nil
	}
	return ms[0]
}
