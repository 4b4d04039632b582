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

const (
	DefaultOrderField        = types.FieldCreatedAt
	DefaultRelationBatchSize = 30
	DefaultMaxReferenceDepth = 8
	DefaultPathCacheSize     = 128
)

// Config selects the collection a repository works on and tunes resolution.
type Config struct {
	// Collection is the collection path, e.g. "users" or "orgs/o1/users".
	Collection string
	// CollectionPrefix is joined in front of Collection unless
	// DisableCollectionPrefix is set.
	CollectionPrefix        string
	DisableCollectionPrefix bool
	// OnCollectionInit may rewrite the final collection path.
	OnCollectionInit func(path string) (string, error)

	// OrderField orders paginated results, descending. Defaults to created_at.
	OrderField string
	// RelationBatchSize caps the OR entries of one relation lookup query.
	RelationBatchSize int
	// MaxReferenceDepth bounds nested reference resolution.
	MaxReferenceDepth int
	PathCacheSize     int
	Logger            database.Logger
}

func (c Config) withDefaults() Config {
	if c.OrderField == "" {
		c.OrderField = DefaultOrderField
	}
	if c.RelationBatchSize <= 0 {
		c.RelationBatchSize = DefaultRelationBatchSize
	}
	if c.MaxReferenceDepth <= 0 {
		c.MaxReferenceDepth = DefaultMaxReferenceDepth
	}
	if c.PathCacheSize <= 0 {
		c.PathCacheSize = DefaultPathCacheSize
	}
	if c.Logger == nil {
		c.Logger = database.GetLogger()
	}
	return c
}

// Relation attaches the records of another collection whose ForeignField
// matches the parent's LocalField.
type Relation struct {
	// Collection is the related collection path.
	Collection      string
	CollectionLabel string
	LocalField      string
	ForeignField    string
	// JustOne attaches only the first match even for sequence local fields.
	JustOne bool
	// Options narrows the related lookup; its Where and Select apply.
	Options types.QueryOptions
}

// Reference attaches documents fetched by the ids held in Field.
type Reference struct {
	// Collection is the target collection path.
	Collection string
	// CollectionLabel defaults to the target collection id.
	CollectionLabel string
	// Field is a dotted path holding one id or a list of ids.
	Field string
	// Nested is resolved against the attached documents.
	Nested *Reference
}

// FindOptions is a query plus the links to resolve on its results.
type FindOptions struct {
	types.QueryOptions
	Relations  []Relation
	References []Reference
}

// BulkWrite is one UpdateBulk operation. Doc, when set, is written directly;
// otherwise the target is the document whose id is Where["id"].
type BulkWrite struct {
	Doc   database.DocumentRef
	Where types.FilterExpression
	Data  types.Record
	// Upsert merges Data into the target, creating it when missing.
	Upsert bool
}

// Repository is the data access object of one collection.
type Repository interface {
	Collection() database.CollectionRef

	// Create stores data under a new id and stamps created_at and updated_at.
	Create(ctx context.Context, data types.Record) (types.Record, error)
	FindOne(ctx context.Context, opts FindOptions) (types.Record, error)
	FindByID(ctx context.Context, id string, opts FindOptions) (types.Record, error)
	FindAll(ctx context.Context, opts FindOptions) ([]types.Record, error)
	Paginate(ctx context.Context, opts FindOptions, page types.PageRequest) (*types.PaginatedResult[types.Record], error)
	Count(ctx context.Context, opts types.QueryOptions) (int64, error)
	// Update merges data into the document and returns the stored result.
	Update(ctx context.Context, id string, data types.Record) (types.Record, error)
	// UpdateBulk queues ops on a bulk writer and returns how many were written.
	UpdateBulk(ctx context.Context, ops []BulkWrite) (int, error)
	// Delete removes the named documents and returns how many existed.
	Delete(ctx context.Context, ids []string) (int, error)
}
