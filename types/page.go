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

package types

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// PageRequest describes the requested page. Zero values fall back to defaults.
type PageRequest struct {
	Page  int `json:"page,omitempty" mapstructure:"page"`
	Limit int `json:"limit,omitempty" mapstructure:"limit"`
}

// NewPageRequest constructs a PageRequest.
func NewPageRequest(page int, limit int) PageRequest {
	return PageRequest{Page: page, Limit: limit}
}

func (p PageRequest) GetPage() int {
	if p.Page < 1 {
		return DefaultPage
	}
	return p.Page
}

func (p PageRequest) GetLimit() int {
	if p.Limit < 1 {
		return DefaultLimit
	}
	return p.Limit
}

func (p PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetLimit()
}

// TotalPages returns ceil(totalItems / limit).
func (p PageRequest) TotalPages(totalItems int) int {
	limit := p.GetLimit()
	return (totalItems + limit - 1) / limit
}

// PaginatedResult holds one page of items along with pagination metadata.
type PaginatedResult[T any] struct {
	Data       []T `json:"data"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
}

// NewPaginatedResult constructs an empty result for the normalised request.
func NewPaginatedResult[T any](req PageRequest) *PaginatedResult[T] {
	return &PaginatedResult[T]{
		Data:  make([]T, 0),
		Page:  req.GetPage(),
		Limit: req.GetLimit(),
	}
}

// InRange reports whether the requested page holds any items.
func (p *PaginatedResult[T]) InRange() bool {
	return p.Page <= p.TotalPages
}

// MapPage converts the items of a page, keeping the metadata.
func MapPage[S, T any](src *PaginatedResult[S], fn func(S) (T, error)) (*PaginatedResult[T], error) {
	out := &PaginatedResult[T]{
		Data:       make([]T, 0, len(src.Data)),
		TotalItems: src.TotalItems,
		TotalPages: src.TotalPages,
		Page:       src.Page,
		Limit:      src.Limit,
	}
	for _, item := range src.Data {
		v, err := fn(item)
		if err != nil {
			return nil, err
		}
		out.Data = append(out.Data, v)
	}
	return out, nil
}
