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

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/types"
)

// BuildQuery applies opts to q: the AND of Where, then the OR of OrWhere,
// then the Select projection. Absent parts are skipped.
func BuildQuery(q database.Query, opts types.QueryOptions) (database.Query, error) {
	where, err := TranslateFilter(opts.Where)
	if err != nil {
		return nil, err
	}
	if len(where) > 0 {
		filters := make([]database.Filter, len(where))
		for i, p := range where {
			filters[i] = p
		}
		q = q.Where(database.And{Filters: filters})
	}

	if len(opts.OrWhere) > 0 {
		ors, err := TranslateOrWhere(opts.OrWhere)
		if err != nil {
			return nil, err
		}
		if len(ors) > 0 {
			q = q.Where(database.Or{Filters: ors})
		}
	}

	if len(opts.Select) > 0 {
		q = q.Select(opts.Select...)
	}
	return q, nil
}

// Paginate counts the matches of q, then fetches the requested page ordered
// by orderField descending. A page beyond the last one yields no data with
// accurate counts. The two reads are not atomic.
func Paginate(ctx context.Context, q database.Query, req types.PageRequest, orderField string) (*types.PaginatedResult[types.Record], error) {
	result := types.NewPaginatedResult[types.Record](req)

	total, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}
	result.TotalItems = int(total)
	result.TotalPages = req.TotalPages(result.TotalItems)
	if !result.InRange() {
		return result, nil
	}

	docs, err := q.OrderBy(orderField, database.Desc).
		Offset(req.GetOffset()).
		Limit(req.GetLimit()).
		Documents(ctx)
	if err != nil {
		return nil, err
	}
	result.Data = append(result.Data, docs...)
	return result, nil
}
