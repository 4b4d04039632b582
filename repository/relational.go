/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

// RelationalRepository maps QueryOptions onto a bun model. Array operators
// have no SQL counterpart and are rejected.
type RelationalRepository[T any] interface {
	Create(ctx context.Context, entity ...*T) error
	FindOne(ctx context.Context, opts types.QueryOptions) (*T, error)
	FindByID(ctx context.Context, id any) (*T, error)
	FindAll(ctx context.Context, opts types.QueryOptions) ([]*T, error)
	Paginate(ctx context.Context, opts types.QueryOptions, page types.PageRequest) (*types.PaginatedResult[*T], error)
	Count(ctx context.Context, opts types.QueryOptions) (int64, error)
	// Update sets the given columns on the row with the primary key id.
	Update(ctx context.Context, id any, data map[string]interface{}) (*T, error)
	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error
	// Delete removes the rows with the given primary keys and returns how
	// many were removed.
	Delete(ctx context.Context, ids ...any) (int, error)

	CreateWithTx(ctx context.Context, tx bun.Tx, entity ...*T) error
	UpsertWithTx(ctx context.Context, tx bun.Tx, fields []string, duplicateKeys []string, entity ...*T) error
	DeleteWithTx(ctx context.Context, tx bun.Tx, ids ...any) (int, error)

	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
}

type relationalRepositoryImpl[T any] struct {
	db         *bun.DB
	table      *schema.Table
	pk         string
	orderField string
}

// NewRelationalRepository returns a relational repository backed by db.
func NewRelationalRepository[T any](db *bun.DB) RelationalRepository[T] {
	table := db.Table(reflect.TypeOf((*T)(nil)).Elem())
	pk := types.FieldID
	if len(table.PKs) > 0 {
		pk = table.PKs[0].Name
	}
	orderField := pk
	if table.HasField(types.FieldCreatedAt) {
		orderField = types.FieldCreatedAt
	}
	return &relationalRepositoryImpl[T]{db: db, table: table, pk: pk, orderField: orderField}
}

func (r *relationalRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *relationalRepositoryImpl[T]) NewSelect() *bun.SelectQuery {
	return r.db.NewSelect().Model((*T)(nil))
}

func (r *relationalRepositoryImpl[T]) Create(ctx context.Context, entity ...*T) error {
	return r.insert(ctx, r.db, entity)
}

func (r *relationalRepositoryImpl[T]) CreateWithTx(ctx context.Context, tx bun.Tx, entity ...*T) error {
	return r.insert(ctx, tx, entity)
}

func (r *relationalRepositoryImpl[T]) insert(ctx context.Context, idb bun.IDB, entities []*T) error {
	if len(entities) == 0 {
		return errors.NewValidationError("", "no entities to create")
	}
	_, err := idb.NewInsert().Model(&entities).Exec(ctx)
	return err
}

func (r *relationalRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error {
	return database.Upsert(ctx, r.db, &entity, fields, duplicateKeys)
}

func (r *relationalRepositoryImpl[T]) UpsertWithTx(ctx context.Context, tx bun.Tx, fields []string, duplicateKeys []string, entity ...*T) error {
	return database.Upsert(ctx, tx, &entity, fields, duplicateKeys)
}

func (r *relationalRepositoryImpl[T]) FindOne(ctx context.Context, opts types.QueryOptions) (*T, error) {
	entity := new(T)
	q, err := r.selectQuery(r.db.NewSelect().Model(entity), opts)
	if err != nil {
		return nil, err
	}
	if err := q.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError(r.table.Name, describe(opts.Where))
		}
		return nil, err
	}
	return entity, nil
}

func (r *relationalRepositoryImpl[T]) FindByID(ctx context.Context, id any) (*T, error) {
	entity := new(T)
	err := r.db.NewSelect().
		Model(entity).
		Where("?TableAlias.? = ?", bun.Ident(r.pk), id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError(r.table.Name, fmt.Sprint(id))
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *relationalRepositoryImpl[T]) FindAll(ctx context.Context, opts types.QueryOptions) ([]*T, error) {
	entities := make([]*T, 0)
	q, err := r.selectQuery(r.db.NewSelect().Model(&entities), opts)
	if err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return entities, nil
}

func (r *relationalRepositoryImpl[T]) Count(ctx context.Context, opts types.QueryOptions) (int64, error) {
	q, err := r.selectQuery(r.db.NewSelect().Model((*T)(nil)), types.QueryOptions{Where: opts.Where, OrWhere: opts.OrWhere})
	if err != nil {
		return 0, err
	}
	n, err := q.Count(ctx)
	return int64(n), err
}

// Paginate mirrors the document paginator: count, then the page ordered by
// created_at (or the primary key) descending.
func (r *relationalRepositoryImpl[T]) Paginate(ctx context.Context, opts types.QueryOptions, page types.PageRequest) (*types.PaginatedResult[*T], error) {
	result := types.NewPaginatedResult[*T](page)
	total, err := r.Count(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.TotalItems = int(total)
	result.TotalPages = page.TotalPages(result.TotalItems)
	if !result.InRange() {
		return result, nil
	}

	entities := make([]*T, 0, page.GetLimit())
	q, err := r.selectQuery(r.db.NewSelect().Model(&entities), opts)
	if err != nil {
		return nil, err
	}
	err = q.OrderExpr("?TableAlias.? DESC", bun.Ident(r.orderField)).
		Offset(page.GetOffset()).
		Limit(page.GetLimit()).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	result.Data = entities
	return result, nil
}

func (r *relationalRepositoryImpl[T]) Update(ctx context.Context, id any, data map[string]interface{}) (*T, error) {
	columns := make([]string, 0, len(data))
	for k := range data {
		if k != r.pk && k != types.FieldCreatedAt {
			columns = append(columns, k)
		}
	}
	if len(columns) > 0 {
		sort.Strings(columns)
		q := r.db.NewUpdate().Model((*T)(nil))
		for _, c := range columns {
			q = q.Set("? = ?", bun.Ident(c), data[c])
		}
		if _, stamped := data[types.FieldUpdatedAt]; !stamped && r.table.HasField(types.FieldUpdatedAt) {
			q = q.Set("? = ?", bun.Ident(types.FieldUpdatedAt), time.Now().UTC())
		}
		if _, err := q.Where("? = ?", bun.Ident(r.pk), id).Exec(ctx); err != nil {
			return nil, err
		}
	}
	return r.FindByID(ctx, id)
}

func (r *relationalRepositoryImpl[T]) Delete(ctx context.Context, ids ...any) (int, error) {
	return r.delete(ctx, r.db, ids)
}

func (r *relationalRepositoryImpl[T]) DeleteWithTx(ctx context.Context, tx bun.Tx, ids ...any) (int, error) {
	return r.delete(ctx, tx, ids)
}

func (r *relationalRepositoryImpl[T]) delete(ctx context.Context, idb bun.IDB, ids []any) (int, error) {
	if len(ids) == 0 {
		return 0, errors.NewValidationError(r.pk, "no ids found")
	}
	res, err := idb.NewDelete().
		Model((*T)(nil)).
		Where("? IN (?)", bun.Ident(r.pk), bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// selectQuery applies where, orWhere, select and include to q.
func (r *relationalRepositoryImpl[T]) selectQuery(q *bun.SelectQuery, opts types.QueryOptions) (*bun.SelectQuery, error) {
	where, err := TranslateFilter(opts.Where)
	if err != nil {
		return nil, err
	}
	for _, p := range where {
		expr, args, err := sqlPredicate(p)
		if err != nil {
			return nil, err
		}
		q = q.Where(expr, args...)
	}

	if len(opts.OrWhere) > 0 {
		ors, err := TranslateOrWhere(opts.OrWhere)
		if err != nil {
			return nil, err
		}
		exprs := make([]string, len(ors))
		argLists := make([][]interface{}, len(ors))
		for i, f := range ors {
			if exprs[i], argLists[i], err = sqlPredicate(f.(database.Predicate)); err != nil {
				return nil, err
			}
		}
		if len(exprs) > 0 {
			q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				for i := range exprs {
					q = q.WhereOr(exprs[i], argLists[i]...)
				}
				return q
			})
		}
	}

	if len(opts.Select) > 0 {
		q = q.Column(opts.Select...)
	}
	for _, rel := range opts.Include {
		q = q.Relation(rel)
	}
	return q, nil
}

func sqlPredicate(p database.Predicate) (string, []interface{}, error) {
	column := bun.Ident(p.Field)
	switch p.Op {
	case types.OpEqual, types.OpNotEqual, types.OpLessThan, types.OpLessThanOrEqual,
		types.OpGreaterThan, types.OpGreaterThanOrEqual:
		op := p.Op.String()
		if p.Op == types.OpEqual {
			op = "="
		}
		return "? " + op + " ?", []interface{}{column, p.Value}, nil
	case types.OpIn:
		return "? IN (?)", []interface{}{column, bun.In(p.Value)}, nil
	case types.OpNotIn:
		return "? NOT IN (?)", []interface{}{column, bun.In(p.Value)}, nil
	}
	return "", nil, errors.NewValidationError(p.Field, p.Op.Name()+" is not supported by SQL stores")
}
