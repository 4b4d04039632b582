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

package database

import (
	"context"

	"github.com/tomoncle/firecrud/types"
)

// Direction is the sort order of an OrderBy clause.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Filter is a node of a query predicate tree: a Predicate, an And or an Or.
type Filter interface {
	isFilter()
}

// Predicate compares one field against a value.
type Predicate struct {
	Field string
	Op    types.Operator
	Value interface{}
}

// And holds when every child filter holds.
type And struct {
	Filters []Filter
}

// Or holds when at least one child filter holds.
type Or struct {
	Filters []Filter
}

func (Predicate) isFilter() {}
func (And) isFilter()       {}
func (Or) isFilter()        {}

// Query is an immutable query over one collection. Every builder method
// returns a new Query and leaves the receiver untouched.
type Query interface {
	Where(filter Filter) Query
	Select(fields ...string) Query
	OrderBy(field string, dir Direction) Query
	Offset(n int) Query
	Limit(n int) Query

	// Count returns the number of documents matching the filters, ignoring
	// offset and limit.
	Count(ctx context.Context) (int64, error)
	// Documents returns every matching document with its "id" field set.
	Documents(ctx context.Context) ([]types.Record, error)
}

// CollectionRef addresses a collection or sub-collection.
type CollectionRef interface {
	Query

	ID() string
	Path() string
	Doc(id string) DocumentRef
	// NewDoc returns a reference with a fresh store-assigned id.
	NewDoc() DocumentRef
	// Parent returns the owning document, nil for root collections.
	Parent() DocumentRef
}

// DocumentRef addresses one document.
type DocumentRef interface {
	ID() string
	Path() string
	Parent() CollectionRef
	Collection(id string) CollectionRef

	// Get returns the stored fields plus "id", or a NotFound error.
	Get(ctx context.Context) (types.Record, error)
	// Set writes data, replacing the document unless merge is true.
	Set(ctx context.Context, data types.Record, merge bool) error
	// Update merges data into an existing document, or returns NotFound.
	Update(ctx context.Context, data types.Record) error
	Delete(ctx context.Context) error
}

// BulkWriter batches writes; they are applied when End is called.
type BulkWriter interface {
	Set(doc DocumentRef, data types.Record, merge bool) error
	Update(doc DocumentRef, data types.Record) error
	Delete(doc DocumentRef) error
	End(ctx context.Context) error
}

// Client is the document store handle shared by all repositories.
type Client interface {
	// Collection returns nil when path does not name a collection.
	Collection(path string) CollectionRef
	// Doc returns nil when path does not name a document.
	Doc(path string) DocumentRef
	// GetAll fetches documents in one round trip. The result is positional;
	// missing documents yield nil entries.
	GetAll(ctx context.Context, refs []DocumentRef) ([]types.Record, error)
	BulkWriter(ctx context.Context) BulkWriter
	Close() error
}
