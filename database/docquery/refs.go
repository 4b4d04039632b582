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
	"sync"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

// Backend is the storage a document store must provide; collection and
// document references, queries and path handling are built on top of it.
// Collection paths are slash joined, e.g. "users/u1/posts".
type Backend interface {
	// Load returns every document of the collection with "id" set.
	Load(ctx context.Context, coll string) ([]types.Record, error)
	// Fetch returns the documents named by keys, nil for missing ones.
	Fetch(ctx context.Context, keys []Key) ([]types.Record, error)
	Set(ctx context.Context, coll, id string, data types.Record, merge bool) error
	// Update returns a NotFound error when the document does not exist.
	Update(ctx context.Context, coll, id string, data types.Record) error
	Delete(ctx context.Context, coll, id string) error
	NewID() string
}

// Key names one document.
type Key struct {
	Collection string
	ID         string
}

// KeyOf returns the key of a document reference.
func KeyOf(ref database.DocumentRef) Key {
	return Key{Collection: ref.Parent().Path(), ID: ref.ID()}
}

// CollectionAt returns a collection reference, or nil when path does not
// have an odd number of segments.
func CollectionAt(b Backend, path string) database.CollectionRef {
	segments, err := database.SplitPath(path)
	if err != nil || len(segments)%2 == 0 {
		return nil
	}
	return newCollection(b, segments)
}

// DocumentAt returns a document reference, or nil when path does not have
// an even number of segments.
func DocumentAt(b Backend, path string) database.DocumentRef {
	segments, err := database.SplitPath(path)
	if err != nil || len(segments)%2 == 1 {
		return nil
	}
	return newCollection(b, segments[:len(segments)-1]).Doc(segments[len(segments)-1])
}

// GetDocument reads one document through Fetch.
func GetDocument(ctx context.Context, b Backend, ref database.DocumentRef) (types.Record, error) {
	recs, err := b.Fetch(ctx, []Key{KeyOf(ref)})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 || recs[0] == nil {
		return nil, errors.NewNotFoundError(ref.Parent().Path(), ref.ID())
	}
	return recs[0], nil
}

func newCollection(b Backend, segments []string) *collectionRef {
	c := &collectionRef{
		backend: b,
		path:    database.JoinPath(segments...),
		id:      segments[len(segments)-1],
	}
	if len(segments) > 1 {
		c.parentPath = database.JoinPath(segments[:len(segments)-1]...)
	}
	c.Query = NewQuery(SourceFunc(func(ctx context.Context) ([]types.Record, error) {
		return b.Load(ctx, c.path)
	}))
	return c
}

type collectionRef struct {
	*Query

	backend    Backend
	path       string
	id         string
	parentPath string
}

func (c *collectionRef) ID() string   { return c.id }
func (c *collectionRef) Path() string { return c.path }

func (c *collectionRef) Doc(id string) database.DocumentRef {
	return &documentRef{coll: c, id: id}
}

func (c *collectionRef) NewDoc() database.DocumentRef {
	return c.Doc(c.backend.NewID())
}

func (c *collectionRef) Parent() database.DocumentRef {
	if c.parentPath == "" {
		return nil
	}
	return DocumentAt(c.backend, c.parentPath)
}

type documentRef struct {
	coll *collectionRef
	id   string
}

func (d *documentRef) ID() string                     { return d.id }
func (d *documentRef) Path() string                   { return database.JoinPath(d.coll.path, d.id) }
func (d *documentRef) Parent() database.CollectionRef { return d.coll }

func (d *documentRef) Collection(id string) database.CollectionRef {
	return CollectionAt(d.coll.backend, database.JoinPath(d.Path(), id))
}

func (d *documentRef) Get(ctx context.Context) (types.Record, error) {
	return GetDocument(ctx, d.coll.backend, d)
}

func (d *documentRef) Set(ctx context.Context, data types.Record, merge bool) error {
	return d.coll.backend.Set(ctx, d.coll.path, d.id, data, merge)
}

func (d *documentRef) Update(ctx context.Context, data types.Record) error {
	return d.coll.backend.Update(ctx, d.coll.path, d.id, data)
}

func (d *documentRef) Delete(ctx context.Context) error {
	return d.coll.backend.Delete(ctx, d.coll.path, d.id)
}

// WriteOp is one buffered BulkWriter operation.
type WriteOp struct {
	Kind  WriteKind
	Key   Key
	Data  types.Record
	Merge bool
}

type WriteKind int

const (
	WriteSet WriteKind = iota
	WriteUpdate
	WriteDelete
)

// BulkBuffer collects bulk operations and hands them to flush on End.
type BulkBuffer struct {
	mu    sync.Mutex
	flush func(ctx context.Context, ops []WriteOp) error
	ops   []WriteOp
	ended bool
}

var _ database.BulkWriter = (*BulkBuffer)(nil)

func NewBulkBuffer(flush func(ctx context.Context, ops []WriteOp) error) *BulkBuffer {
	return &BulkBuffer{flush: flush}
}

func (b *BulkBuffer) add(op WriteOp) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return errors.NewValidationError("", "bulk writer already ended")
	}
	b.ops = append(b.ops, op)
	return nil
}

func (b *BulkBuffer) Set(doc database.DocumentRef, data types.Record, merge bool) error {
	return b.add(WriteOp{Kind: WriteSet, Key: KeyOf(doc), Data: data.DeepClone(), Merge: merge})
}

func (b *BulkBuffer) Update(doc database.DocumentRef, data types.Record) error {
	return b.add(WriteOp{Kind: WriteUpdate, Key: KeyOf(doc), Data: data.DeepClone()})
}

func (b *BulkBuffer) Delete(doc database.DocumentRef) error {
	return b.add(WriteOp{Kind: WriteDelete, Key: KeyOf(doc)})
}

func (b *BulkBuffer) End(ctx context.Context) error {
	b.mu.Lock()
	if b.ended {
		b.mu.Unlock()
		return nil
	}
	b.ended = true
	ops := b.ops
	b.ops = nil
	b.mu.Unlock()
	if len(ops) == 0 {
		return nil
	}
	return b.flush(ctx, ops)
}

// ApplyUpdate merges data into doc in place. Keys are dotted field paths.
func ApplyUpdate(doc types.Record, data types.Record) {
	for k, v := range data.Without(types.FieldID) {
		types.ParseFieldPath(k).Set(doc, v)
	}
}

// ApplySet returns the document stored by a Set of data over existing.
func ApplySet(existing types.Record, data types.Record, merge bool) types.Record {
	stored := data.Without(types.FieldID).DeepClone()
	if stored == nil {
		stored = make(types.Record)
	}
	if merge && existing != nil {
		return existing.DeepClone().Merge(stored)
	}
	return stored
}
