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

package firestoredb

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

const countAlias = "all"

type order struct {
	field string
	dir   firestore.Direction
}

// query keeps filters on base and applies projection, order and paging at
// execution so Count can run over the filtered query alone.
type query struct {
	client *Client
	coll   *firestore.CollectionRef
	base   firestore.Query
	err    error
	fields []string
	orders []order
	offset int
	limit  int
}

var _ database.Query = (*query)(nil)

func (q *query) clone() *query {
	next := *q
	next.fields = append([]string(nil), q.fields...)
	next.orders = append([]order(nil), q.orders...)
	return &next
}

func (q *query) Where(filter database.Filter) database.Query {
	next := q.clone()
	if next.err != nil {
		return next
	}
	ef, err := EntityFilter(q.coll, filter)
	if err != nil {
		next.err = err
		return next
	}
	if ef != nil {
		next.base = next.base.WhereEntity(ef)
	}
	return next
}

func (q *query) Select(fields ...string) database.Query {
	next := q.clone()
	next.fields = append([]string(nil), fields...)
	return next
}

func (q *query) OrderBy(field string, dir database.Direction) database.Query {
	next := q.clone()
	d := firestore.Asc
	if dir == database.Desc {
		d = firestore.Desc
	}
	if field == types.FieldID {
		field = firestore.DocumentID
	}
	next.orders = append(next.orders, order{field: field, dir: d})
	return next
}

func (q *query) Offset(n int) database.Query {
	next := q.clone()
	next.offset = n
	return next
}

func (q *query) Limit(n int) database.Query {
	next := q.clone()
	next.limit = n
	return next
}

func (q *query) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	res, err := q.base.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := res[countAlias].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result type %T", res[countAlias])
	}
	return v.GetIntegerValue(), nil
}

func (q *query) Documents(ctx context.Context) ([]types.Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	fq := q.base
	if len(q.fields) > 0 {
		fq = fq.Select(q.fields...)
	}
	for _, o := range q.orders {
		fq = fq.OrderBy(o.field, o.dir)
	}
	if q.offset > 0 {
		fq = fq.Offset(q.offset)
	}
	if q.limit > 0 {
		fq = fq.Limit(q.limit)
	}
	snaps, err := fq.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]types.Record, len(snaps))
	for i, snap := range snaps {
		out[i] = snapshotRecord(snap)
	}
	q.client.logger.Debug("Firestore query executed", "results", len(out))
	return out, nil
}

// EntityFilter translates a filter tree into a Firestore entity filter.
// Empty And/Or groups translate to nil. Predicates on "id" compare document
// names within coll.
func EntityFilter(coll *firestore.CollectionRef, filter database.Filter) (firestore.EntityFilter, error) {
	switch f := filter.(type) {
	case nil:
		return nil, nil
	case database.Predicate:
		return propertyFilter(coll, f)
	case *database.Predicate:
		return propertyFilter(coll, *f)
	case database.And:
		children, err := entityFilters(coll, f.Filters)
		if err != nil || len(children) == 0 {
			return nil, err
		}
		if len(children) == 1 {
			return children[0], nil
		}
		return firestore.AndFilter{Filters: children}, nil
	case database.Or:
		children, err := entityFilters(coll, f.Filters)
		if err != nil || len(children) == 0 {
			return nil, err
		}
		if len(children) == 1 {
			return children[0], nil
		}
		return firestore.OrFilter{Filters: children}, nil
	}
	return nil, errors.NewValidationError("", fmt.Sprintf("unsupported filter %T", filter))
}

func entityFilters(coll *firestore.CollectionRef, filters []database.Filter) ([]firestore.EntityFilter, error) {
	out := make([]firestore.EntityFilter, 0, len(filters))
	for _, f := range filters {
		ef, err := EntityFilter(coll, f)
		if err != nil {
			return nil, err
		}
		if ef != nil {
			out = append(out, ef)
		}
	}
	return out, nil
}

func propertyFilter(coll *firestore.CollectionRef, p database.Predicate) (firestore.EntityFilter, error) {
	if !p.Op.IsValid() {
		return nil, errors.NewValidationError(p.Field, "unknown operator")
	}
	value := p.Value
	if p.Op.ListOperand() {
		if !types.IsSequence(value) {
			return nil, errors.NewValidationError(p.Field, p.Op.Name()+" expects a list")
		}
		value = types.ToSlice(value)
	}
	if p.Field == types.FieldID && coll != nil {
		return firestore.PropertyFilter{Path: firestore.DocumentID, Operator: p.Op.String(), Value: documentRefs(coll, value)}, nil
	}
	return firestore.PropertyFilter{Path: p.Field, Operator: p.Op.String(), Value: value}, nil
}

// documentRefs turns ids, or lists of ids, into references within coll.
func documentRefs(coll *firestore.CollectionRef, value interface{}) interface{} {
	if list, ok := value.([]interface{}); ok {
		refs := make([]*firestore.DocumentRef, 0, len(list))
		for _, v := range list {
			if id, ok := v.(string); ok && id != "" {
				refs = append(refs, coll.Doc(id))
			}
		}
		return refs
	}
	if id, ok := value.(string); ok && id != "" {
		return coll.Doc(id)
	}
	return value
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
