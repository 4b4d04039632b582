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

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/database/docquery"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

// resolver hydrates records with relations and references. Collection
// handles are cached by path.
type resolver struct {
	client database.Client
	cfg    Config
	paths  *lru.Cache[string, database.CollectionRef]
}

func newResolver(client database.Client, cfg Config) (*resolver, error) {
	paths, err := lru.New[string, database.CollectionRef](cfg.PathCacheSize)
	if err != nil {
		return nil, err
	}
	return &resolver{client: client, cfg: cfg, paths: paths}, nil
}

func (r *resolver) collection(path string) (database.CollectionRef, error) {
	if coll, ok := r.paths.Get(path); ok {
		return coll, nil
	}
	coll, err := database.ResolveCollection(r.client, path)
	if err != nil {
		return nil, err
	}
	r.paths.Add(path, coll)
	return coll, nil
}

// resolveRelations runs every relation in order over records, in place. Any
// lookup failure aborts the remaining relations.
func (r *resolver) resolveRelations(ctx context.Context, records []types.Record, relations []Relation) error {
	for _, rel := range relations {
		if err := r.resolveRelation(ctx, records, rel); err != nil {
			r.cfg.Logger.Warn("Relation resolution failed", "collection", rel.Collection, "label", rel.CollectionLabel, "error", err)
			return errors.NewRelationError(rel.CollectionLabel, err)
		}
	}
	return nil
}

func (r *resolver) resolveRelation(ctx context.Context, records []types.Record, rel Relation) error {
	coll, err := r.collection(rel.Collection)
	if err != nil {
		return err
	}
	label := rel.CollectionLabel
	if label == "" {
		label = coll.ID()
	}
	local := types.ParseFieldPath(rel.LocalField)
	foreign := types.ParseFieldPath(rel.ForeignField)

	var entries []types.FilterExpression
	for _, rec := range records {
		v, ok := local.Lookup(rec)
		if !ok || types.IsEmptyValue(v) {
			continue
		}
		if types.IsSequence(v) {
			if vals := types.ToSlice(v); len(vals) > 0 {
				entries = append(entries, types.FilterExpression{rel.ForeignField: types.In(vals...)})
			}
			continue
		}
		entries = append(entries, types.FilterExpression{rel.ForeignField: v})
	}

	var related []types.Record
	if len(entries) > 0 {
		if related, err = r.lookup(ctx, coll, rel, entries); err != nil {
			return err
		}
	}

	for _, rec := range records {
		v, ok := local.Lookup(rec)
		if !ok {
			continue
		}
		if !types.IsSequence(v) {
			rec[label] = findMatch(related, foreign, v)
			continue
		}
		vals := types.ToSlice(v)
		attached := make([]types.Record, len(vals))
		for i, val := range vals {
			attached[i] = findMatch(related, foreign, val)
		}
		if rel.JustOne {
			rec[label] = firstRecord(attached)
		} else {
			rec[label] = attached
		}
	}
	r.cfg.Logger.Debug("Relation resolved", "collection", coll.Path(), "label", label, "matches", len(related))
	return nil
}

// lookup runs the OR entries in chunks of RelationBatchSize.
func (r *resolver) lookup(ctx context.Context, coll database.CollectionRef, rel Relation, entries []types.FilterExpression) ([]types.Record, error) {
	opts := rel.Options
	if len(opts.Select) > 0 {
		opts.Select = append(append([]string(nil), opts.Select...), rel.ForeignField)
	}

	var related []types.Record
	seen := make(map[string]bool)
	for start := 0; start < len(entries); start += r.cfg.RelationBatchSize {
		end := min(start+r.cfg.RelationBatchSize, len(entries))
		opts.OrWhere = entries[start:end]
		q, err := BuildQuery(coll, opts)
		if err != nil {
			return nil, err
		}
		docs, err := q.Documents(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			if id := d.ID(); id != "" {
				if seen[id] {
					continue
				}
				seen[id] = true
			}
			related = append(related, d)
		}
	}
	return related, nil
}

func findMatch(related []types.Record, foreign types.FieldPath, value interface{}) types.Record {
	for _, rec := range related {
		if v, ok := foreign.Lookup(rec); ok && docquery.Equal(v, value) {
			return rec.Clone()
		}
	}
	return nil
}

func firstRecord(recs []types.Record) types.Record {
	for _, rec := range recs {
		if rec != nil {
			return rec
		}
	}
	return nil
}

// resolveReferences attaches referenced documents, in place. Declarations
// nested deeper than MaxReferenceDepth are rejected before any read.
func (r *resolver) resolveReferences(ctx context.Context, records []types.Record, refs []Reference) error {
	for i := range refs {
		if referenceDepth(&refs[i], r.cfg.MaxReferenceDepth) > r.cfg.MaxReferenceDepth {
			return errors.NewValidationError(refs[i].Field,
				fmt.Sprintf("references nested deeper than %d", r.cfg.MaxReferenceDepth))
		}
	}
	for i := range refs {
		if err := r.resolveReference(ctx, records, &refs[i]); err != nil {
			return err
		}
	}
	return nil
}

// referenceDepth counts the nesting of ref, stopping past limit so cyclic
// declarations terminate.
func referenceDepth(ref *Reference, limit int) int {
	depth := 0
	for ; ref != nil && depth <= limit; ref = ref.Nested {
		depth++
	}
	return depth
}

func (r *resolver) resolveReference(ctx context.Context, records []types.Record, ref *Reference) error {
	coll, err := r.collection(ref.Collection)
	if err != nil {
		return err
	}
	label := ref.CollectionLabel
	if label == "" {
		label = coll.ID()
	}
	field := types.ParseFieldPath(ref.Field)

	var ids []string
	seen := make(map[string]bool)
	for _, rec := range records {
		v, ok := field.Lookup(rec)
		if !ok {
			continue
		}
		for _, id := range referenceIDs(v) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	docRefs := make([]database.DocumentRef, len(ids))
	for i, id := range ids {
		docRefs[i] = coll.Doc(id)
	}
	docs, err := r.client.GetAll(ctx, docRefs)
	if err != nil {
		return fmt.Errorf("failed to resolve reference %s: %w", label, err)
	}
	byID := make(map[string]types.Record, len(docs))
	for i, d := range docs {
		if d != nil {
			byID[ids[i]] = d
		}
	}

	var attached []types.Record
	attach := func(v interface{}) types.Record {
		id, _ := v.(string)
		d, ok := byID[id]
		if !ok {
			return nil
		}
		c := d.Clone()
		attached = append(attached, c)
		return c
	}
	for _, rec := range records {
		v, ok := field.Lookup(rec)
		if !ok {
			continue
		}
		if !types.IsSequence(v) {
			rec[label] = attach(v)
			continue
		}
		vals := types.ToSlice(v)
		out := make([]types.Record, len(vals))
		for i, val := range vals {
			out[i] = attach(val)
		}
		rec[label] = out
	}
	r.cfg.Logger.Debug("Reference resolved", "collection", coll.Path(), "label", label, "fetched", len(byID))

	if ref.Nested != nil && len(attached) > 0 {
		return r.resolveReference(ctx, attached, ref.Nested)
	}
	return nil
}

func referenceIDs(v interface{}) []string {
	if !types.IsSequence(v) {
		if id, ok := v.(string); ok && id != "" {
			return []string{id}
		}
		return nil
	}
	var out []string
	for _, item := range types.ToSlice(v) {
		if id, ok := item.(string); ok && id != "" {
			out = append(out, id)
		}
	}
	return out
}
