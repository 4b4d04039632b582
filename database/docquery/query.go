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

package docquery

import (
	"context"
	"sort"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/types"
)

// Order is one OrderBy clause.
type Order struct {
	Field string
	Dir   database.Direction
}

// Spec is the accumulated state of a query.
type Spec struct {
	Filters []database.Filter
	Fields  []string
	Orders  []Order
	Offset  int
	Limit   int
}

func (s Spec) clone() Spec {
	out := s
	out.Filters = append([]database.Filter(nil), s.Filters...)
	out.Fields = append([]string(nil), s.Fields...)
	out.Orders = append([]Order(nil), s.Orders...)
	return out
}

// Filter returns the conjunction of every Where clause.
func (s Spec) Filter() database.Filter {
	switch len(s.Filters) {
	case 0:
		return nil
	case 1:
		return s.Filters[0]
	}
	return database.And{Filters: s.Filters}
}

// Count returns how many documents satisfy the filters.
func (s Spec) Count(docs []types.Record) int64 {
	filter := s.Filter()
	var n int64
	for _, d := range docs {
		if Match(d, filter) {
			n++
		}
	}
	return n
}

// Apply runs the whole query over docs: filter, order, offset, limit and
// projection. Ordered queries drop documents lacking an order field; ties are
// broken by id. The input slice is not modified.
func (s Spec) Apply(docs []types.Record) []types.Record {
	filter := s.Filter()
	out := make([]types.Record, 0, len(docs))
	for _, d := range docs {
		if !Match(d, filter) {
			continue
		}
		if !hasOrderFields(d, s.Orders) {
			continue
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range s.Orders {
			path := types.ParseFieldPath(o.Field)
			a, _ := path.Lookup(out[i])
			b, _ := path.Lookup(out[j])
			if c := Compare(a, b); c != 0 {
				if o.Dir == database.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return out[i].ID() < out[j].ID()
	})

	if s.Offset > 0 {
		if s.Offset >= len(out) {
			out = out[:0]
		} else {
			out = out[s.Offset:]
		}
	}
	if s.Limit > 0 && s.Limit < len(out) {
		out = out[:s.Limit]
	}

	result := make([]types.Record, len(out))
	for i, d := range out {
		result[i] = Project(d, s.Fields)
	}
	return result
}

func hasOrderFields(d types.Record, orders []Order) bool {
	for _, o := range orders {
		if _, ok := types.ParseFieldPath(o.Field).Lookup(d); !ok {
			return false
		}
	}
	return true
}

// Project copies the selected fields plus the id. No fields means the whole
// document is copied.
func Project(d types.Record, fields []string) types.Record {
	if len(fields) == 0 {
		return d.Clone()
	}
	out := types.Record{types.FieldID: d[types.FieldID]}
	for _, f := range fields {
		path := types.ParseFieldPath(f)
		if v, ok := path.Lookup(d); ok {
			path.Set(out, v)
		}
	}
	return out
}

// Source loads every document of a collection, each carrying its id.
type Source interface {
	Load(ctx context.Context) ([]types.Record, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]types.Record, error)

func (f SourceFunc) Load(ctx context.Context) ([]types.Record, error) { return f(ctx) }

// Query implements database.Query by evaluating the Spec in process over
// the documents of a Source.
type Query struct {
	src  Source
	spec Spec
}

var _ database.Query = (*Query)(nil)

func NewQuery(src Source) *Query {
	return &Query{src: src}
}

// Spec returns a copy of the accumulated query state.
func (q *Query) Spec() Spec { return q.spec.clone() }

func (q *Query) with(fn func(*Spec)) database.Query {
	next := &Query{src: q.src, spec: q.spec.clone()}
	fn(&next.spec)
	return next
}

func (q *Query) Where(filter database.Filter) database.Query {
	if filter == nil {
		return q.with(func(*Spec) {})
	}
	return q.with(func(s *Spec) { s.Filters = append(s.Filters, filter) })
}

func (q *Query) Select(fields ...string) database.Query {
	return q.with(func(s *Spec) { s.Fields = append([]string(nil), fields...) })
}

func (q *Query) OrderBy(field string, dir database.Direction) database.Query {
	return q.with(func(s *Spec) { s.Orders = append(s.Orders, Order{Field: field, Dir: dir}) })
}

func (q *Query) Offset(n int) database.Query {
	return q.with(func(s *Spec) { s.Offset = n })
}

func (q *Query) Limit(n int) database.Query {
	return q.with(func(s *Spec) { s.Limit = n })
}

func (q *Query) Count(ctx context.Context) (int64, error) {
	docs, err := q.src.Load(ctx)
	if err != nil {
		return 0, err
	}
	return q.spec.Count(docs), nil
}

func (q *Query) Documents(ctx context.Context) ([]types.Record, error) {
	docs, err := q.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return q.spec.Apply(docs), nil
}
