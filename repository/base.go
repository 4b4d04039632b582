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
	"fmt"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/database/docquery"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

type baseRepositoryImpl struct {
	client     database.Client
	collection database.CollectionRef
	cfg        Config
	resolver   *resolver
	logger     database.Logger
}

var _ Repository = (*baseRepositoryImpl)(nil)

// NewRepository returns a repository over the collection named by cfg.
func NewRepository(client database.Client, cfg Config) (Repository, error) {
	if client == nil {
		return nil, errors.NewValidationError("client", "store client is required")
	}
	cfg = cfg.withDefaults()

	path, err := CollectionPath(cfg)
	if err != nil {
		return nil, err
	}
	coll, err := database.ResolveCollection(client, path)
	if err != nil {
		return nil, err
	}
	res, err := newResolver(client, cfg)
	if err != nil {
		return nil, err
	}
	return &baseRepositoryImpl{
		client:     client,
		collection: coll,
		cfg:        cfg,
		resolver:   res,
		logger:     cfg.Logger,
	}, nil
}

// CollectionPath joins the prefix and collection of cfg and applies
// OnCollectionInit.
func CollectionPath(cfg Config) (string, error) {
	if cfg.Collection == "" {
		return "", errors.NewValidationError("collection", "collection is required")
	}
	path := cfg.Collection
	if cfg.CollectionPrefix != "" && !cfg.DisableCollectionPrefix {
		path = database.JoinPath(cfg.CollectionPrefix, cfg.Collection)
	}
	if cfg.OnCollectionInit != nil {
		next, err := cfg.OnCollectionInit(path)
		if err != nil {
			return "", fmt.Errorf("collection init hook failed: %w", err)
		}
		path = next
	}
	return path, nil
}

func (r *baseRepositoryImpl) Collection() database.CollectionRef { return r.collection }

func (r *baseRepositoryImpl) Create(ctx context.Context, data types.Record) (types.Record, error) {
	now := types.Now()
	stored := data.Without(types.FieldID)
	if stored == nil {
		stored = make(types.Record)
	}
	stored[types.FieldCreatedAt] = now
	stored[types.FieldUpdatedAt] = now

	doc := r.collection.NewDoc()
	if err := doc.Set(ctx, stored, false); err != nil {
		return nil, fmt.Errorf("failed to create document in %s: %w", r.collection.Path(), err)
	}
	r.logger.Debug("Document created", "collection", r.collection.Path(), "id", doc.ID())
	return stored.WithID(doc.ID()), nil
}

func (r *baseRepositoryImpl) FindOne(ctx context.Context, opts FindOptions) (types.Record, error) {
	q, err := BuildQuery(r.collection, opts.QueryOptions)
	if err != nil {
		return nil, err
	}
	docs, err := q.Limit(1).Documents(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.NewNotFoundError(r.collection.Path(), describe(opts.Where))
	}
	if err := r.hydrate(ctx, docs, opts); err != nil {
		return nil, err
	}
	return docs[0], nil
}

func (r *baseRepositoryImpl) FindByID(ctx context.Context, id string, opts FindOptions) (types.Record, error) {
	if id == "" {
		return nil, errors.NewValidationError(types.FieldID, "id is required")
	}
	doc, err := r.collection.Doc(id).Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(opts.Select) > 0 {
		doc = docquery.Project(doc, opts.Select)
	}
	if err := r.hydrate(ctx, []types.Record{doc}, opts); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *baseRepositoryImpl) FindAll(ctx context.Context, opts FindOptions) ([]types.Record, error) {
	q, err := BuildQuery(r.collection, opts.QueryOptions)
	if err != nil {
		return nil, err
	}
	docs, err := q.Documents(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, docs, opts); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = make([]types.Record, 0)
	}
	return docs, nil
}

func (r *baseRepositoryImpl) Paginate(ctx context.Context, opts FindOptions, page types.PageRequest) (*types.PaginatedResult[types.Record], error) {
	q, err := BuildQuery(r.collection, opts.QueryOptions)
	if err != nil {
		return nil, err
	}
	result, err := Paginate(ctx, q, page, r.cfg.OrderField)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, result.Data, opts); err != nil {
		return nil, err
	}
	r.logger.Debug("Page fetched", "collection", r.collection.Path(), "page", result.Page,
		"limit", result.Limit, "totalItems", result.TotalItems)
	return result, nil
}

func (r *baseRepositoryImpl) Count(ctx context.Context, opts types.QueryOptions) (int64, error) {
	q, err := BuildQuery(r.collection, opts)
	if err != nil {
		return 0, err
	}
	return q.Count(ctx)
}

func (r *baseRepositoryImpl) Update(ctx context.Context, id string, data types.Record) (types.Record, error) {
	if id == "" {
		return nil, errors.NewValidationError(types.FieldID, "id is required")
	}
	changes := data.Without(types.FieldID, types.FieldCreatedAt)
	if changes == nil {
		changes = make(types.Record)
	}
	changes[types.FieldUpdatedAt] = types.Now()

	doc := r.collection.Doc(id)
	if err := doc.Update(ctx, changes); err != nil {
		return nil, err
	}
	return doc.Get(ctx)
}

func (r *baseRepositoryImpl) UpdateBulk(ctx context.Context, ops []BulkWrite) (int, error) {
	if len(ops) == 0 {
		return 0, nil
	}

	var lookups []types.FilterExpression
	for _, op := range ops {
		if op.Doc == nil && len(op.Where) > 0 {
			lookups = append(lookups, op.Where)
		}
	}
	existing := make(map[string]bool)
	if len(lookups) > 0 {
		q, err := BuildQuery(r.collection, types.QueryOptions{OrWhere: lookups})
		if err != nil {
			return 0, err
		}
		docs, err := q.Documents(ctx)
		if err != nil {
			return 0, err
		}
		for _, d := range docs {
			existing[d.ID()] = true
		}
	}

	bw := r.client.BulkWriter(ctx)
	queued := 0
	for _, op := range ops {
		doc := op.Doc
		if doc == nil {
			id, _ := op.Where[types.FieldID].(string)
			switch {
			case existing[id], op.Upsert && id != "":
				doc = r.collection.Doc(id)
			case op.Upsert:
				doc = r.collection.NewDoc()
			default:
				continue
			}
		}
		if err := r.queueWrite(bw, doc, op); err != nil {
			return queued, err
		}
		queued++
	}
	if err := bw.End(ctx); err != nil {
		return queued, err
	}
	r.logger.Debug("Bulk update written", "collection", r.collection.Path(), "ops", queued)
	return queued, nil
}

func (r *baseRepositoryImpl) queueWrite(bw database.BulkWriter, doc database.DocumentRef, op BulkWrite) error {
	data := op.Data.Without(types.FieldID)
	if data == nil {
		data = make(types.Record)
	}
	if op.Upsert {
		data[types.FieldCreatedAt] = types.Now()
		return bw.Set(doc, data, true)
	}
	data[types.FieldUpdatedAt] = types.Now()
	return bw.Update(doc, data)
}

func (r *baseRepositoryImpl) Delete(ctx context.Context, ids []string) (int, error) {
	refs := make([]database.DocumentRef, 0, len(ids))
	seen := make(map[string]bool)
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			refs = append(refs, r.collection.Doc(id))
		}
	}
	if len(refs) == 0 {
		return 0, errors.NewValidationError(types.FieldID, "no ids found")
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return 0, err
	}
	bw := r.client.BulkWriter(ctx)
	deleted := 0
	for i, d := range docs {
		if d == nil {
			continue
		}
		if err := bw.Delete(refs[i]); err != nil {
			return 0, err
		}
		deleted++
	}
	if err := bw.End(ctx); err != nil {
		return 0, err
	}
	r.logger.Debug("Documents deleted", "collection", r.collection.Path(), "count", deleted)
	return deleted, nil
}

// hydrate resolves relations, then references, on records in place.
func (r *baseRepositoryImpl) hydrate(ctx context.Context, records []types.Record, opts FindOptions) error {
	if len(records) == 0 {
		return nil
	}
	if len(opts.Relations) > 0 {
		if err := r.resolver.resolveRelations(ctx, records, opts.Relations); err != nil {
			return err
		}
	}
	if len(opts.References) > 0 {
		if err := r.resolver.resolveReferences(ctx, records, opts.References); err != nil {
			return err
		}
	}
	return nil
}

func describe(where types.FilterExpression) string {
	if id, ok := where[types.FieldID].(string); ok {
		return id
	}
	if len(where) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", map[string]interface{}(where))
}
