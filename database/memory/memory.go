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

// Package memory is an in-process document store. It backs tests and small
// embedded deployments and follows the Firestore query semantics implemented
// by docquery.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/xid"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/database/docquery"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

func init() {
	database.Register(func(ctx context.Context, cfg *database.Config, logger database.Logger) (database.Client, error) {
		return New(), nil
	}, database.TypeMemory)
}

// Store is a concurrency safe in-memory database.Client.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]types.Record
	queryErrors map[string]error
	writeError  error
	reads       int
}

var (
	_ database.Client   = (*Store)(nil)
	_ docquery.Backend = (*Store)(nil)
)

func New() *Store {
	return &Store{
		collections: make(map[string]map[string]types.Record),
		queryErrors: make(map[string]error),
	}
}

// WithQueryError makes every read of the collection at path fail with err.
func (s *Store) WithQueryError(path string, err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryErrors[database.JoinPath(path)] = err
	return s
}

// WithWriteError makes every write fail with err.
func (s *Store) WithWriteError(err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeError = err
	return s
}

// Reads returns how many collection loads and batched fetches were served.
func (s *Store) Reads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads
}

// Len returns the number of documents stored in the collection at path.
func (s *Store) Len(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[database.JoinPath(path)])
}

func (s *Store) Collection(path string) database.CollectionRef {
	return docquery.CollectionAt(s, path)
}

func (s *Store) Doc(path string) database.DocumentRef {
	return docquery.DocumentAt(s, path)
}

func (s *Store) GetAll(ctx context.Context, refs []database.DocumentRef) ([]types.Record, error) {
	keys := make([]docquery.Key, len(refs))
	for i, ref := range refs {
		keys[i] = docquery.KeyOf(ref)
	}
	return s.Fetch(ctx, keys)
}

func (s *Store) BulkWriter(ctx context.Context) database.BulkWriter {
	return docquery.NewBulkBuffer(s.flush)
}

func (s *Store) Close() error { return nil }

func (s *Store) NewID() string { return xid.New().String() }

// Load snapshots a collection, sorted by id so unordered reads are stable.
func (s *Store) Load(ctx context.Context, coll string) ([]types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if err := s.queryErrors[coll]; err != nil {
		return nil, err
	}
	docs := s.collections[coll]
	out := make([]types.Record, 0, len(docs))
	for id, data := range docs {
		out = append(out, data.DeepClone().WithID(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (s *Store) Fetch(ctx context.Context, keys []docquery.Key) ([]types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	out := make([]types.Record, len(keys))
	for i, k := range keys {
		if err := s.queryErrors[k.Collection]; err != nil {
			return nil, err
		}
		if data, ok := s.collections[k.Collection][k.ID]; ok {
			out[i] = data.DeepClone().WithID(k.ID)
		}
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, coll, id string, data types.Record, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(coll, id, data, merge)
}

func (s *Store) Update(ctx context.Context, coll, id string, data types.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(coll, id, data)
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(coll, id)
}

// flush applies bulk operations under one lock. Failing operations do not
// stop the others; their errors are joined.
func (s *Store) flush(ctx context.Context, ops []docquery.WriteOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, op := range ops {
		var err error
		switch op.Kind {
		case docquery.WriteSet:
			err = s.setLocked(op.Key.Collection, op.Key.ID, op.Data, op.Merge)
		case docquery.WriteUpdate:
			err = s.updateLocked(op.Key.Collection, op.Key.ID, op.Data)
		case docquery.WriteDelete:
			err = s.deleteLocked(op.Key.Collection, op.Key.ID)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) setLocked(coll, id string, data types.Record, merge bool) error {
	if s.writeError != nil {
		return s.writeError
	}
	docs, ok := s.collections[coll]
	if !ok {
		docs = make(map[string]types.Record)
		s.collections[coll] = docs
	}
	docs[id] = docquery.ApplySet(docs[id], data, merge)
	return nil
}

func (s *Store) updateLocked(coll, id string, data types.Record) error {
	if s.writeError != nil {
		return s.writeError
	}
	existing, ok := s.collections[coll][id]
	if !ok {
		return errors.NewNotFoundError(coll, id)
	}
	updated := existing.DeepClone()
	docquery.ApplyUpdate(updated, data.DeepClone())
	s.collections[coll][id] = updated
	return nil
}

func (s *Store) deleteLocked(coll, id string) error {
	if s.writeError != nil {
		return s.writeError
	}
	delete(s.collections[coll], id)
	return nil
}
