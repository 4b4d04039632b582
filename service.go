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

// Package firecrud provides typed services over document repositories. The
// repository package does the querying and relation resolution; Service
// decodes its records into Go structs.
package firecrud

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/gobuffalo/flect"
	"github.com/mitchellh/mapstructure"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/repository"
	"github.com/tomoncle/firecrud/types"
)

// Service is a typed facade over a document repository.
type Service[T any] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id string) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// List returns entities that match the provided options.
	List(ctx context.Context, opts repository.FindOptions) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, opts repository.FindOptions, page types.PageRequest) (*types.PaginatedResult[*T], error)

	// Count returns how many entities match the filters.
	Count(ctx context.Context, opts types.QueryOptions) (int64, error)

	// Save creates entities. Each model receives its id and timestamps.
	Save(ctx context.Context, model ...*T) error

	// SaveOrUpdate merges data into the entity with the given id, creating it
	// when missing.
	SaveOrUpdate(ctx context.Context, id string, data types.Record) error

	// Update applies a partial update and returns the stored entity.
	Update(ctx context.Context, id string, changes types.Record) (*T, error)

	// Delete removes entities and reports how many existed.
	Delete(ctx context.Context, ids ...string) (int, error)

	// Repository exposes the untyped repository.
	Repository() repository.Repository
}

// Namer lets a model choose its collection name.
type Namer interface {
	CollectionName() string
}

// CollectionName returns the collection of T: its CollectionName method when
// implemented, else the pluralised snake case type name, e.g. SystemConfig
// -> system_configs.
func CollectionName[T any]() string {
	var zero T
	if n, ok := any(zero).(Namer); ok {
		return n.CollectionName()
	}
	if n, ok := any(&zero).(Namer); ok {
		return n.CollectionName()
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return flect.Pluralize(flect.Underscore(t.Name()))
}

type baseServiceImpl[T any] struct {
	repo repository.Repository
}

// NewService returns a Service over client. An empty cfg.Collection defaults
// to CollectionName[T]().
func NewService[T any](client database.Client, cfg repository.Config) (Service[T], error) {
	if cfg.Collection == "" {
		cfg.Collection = CollectionName[T]()
	}
	repo, err := repository.NewRepository(client, cfg)
	if err != nil {
		return nil, err
	}
	return &baseServiceImpl[T]{repo: repo}, nil
}

// NewServiceFromRepository wraps an existing repository.
func NewServiceFromRepository[T any](repo repository.Repository) Service[T] {
	return &baseServiceImpl[T]{repo: repo}
}

func (s *baseServiceImpl[T]) Repository() repository.Repository { return s.repo }

func (s *baseServiceImpl[T]) Get(ctx context.Context, id string) (*T, error) {
	rec, err := s.repo.FindByID(ctx, id, repository.FindOptions{})
	if err != nil {
		return nil, err
	}
	return Decode[T](rec)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	return s.List(ctx, repository.FindOptions{})
}

func (s *baseServiceImpl[T]) List(ctx context.Context, opts repository.FindOptions) ([]*T, error) {
	recs, err := s.repo.FindAll(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(recs))
	for _, rec := range recs {
		v, err := Decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, opts repository.FindOptions, page types.PageRequest) (*types.PaginatedResult[*T], error) {
	result, err := s.repo.Paginate(ctx, opts, page)
	if err != nil {
		return nil, err
	}
	return types.MapPage(result, Decode[T])
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, opts types.QueryOptions) (int64, error) {
	return s.repo.Count(ctx, opts)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) error {
	for _, m := range model {
		if m == nil {
			continue
		}
		rec, err := Encode(m)
		if err != nil {
			return err
		}
		created, err := s.repo.Create(ctx, rec)
		if err != nil {
			return err
		}
		if err := decodeInto(created, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, id string, data types.Record) error {
	_, err := s.repo.UpdateBulk(ctx, []repository.BulkWrite{{
		Where:  types.FilterExpression{types.FieldID: id},
		Data:   data,
		Upsert: true,
	}})
	return err
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id string, changes types.Record) (*T, error) {
	rec, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	return Decode[T](rec)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, ids ...string) (int, error) {
	return s.repo.Delete(ctx, ids)
}

// Encode converts a model into a record through its JSON form, so json tags
// and omitempty decide the stored fields.
func Encode(model interface{}) (types.Record, error) {
	b, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}
	var rec types.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}
	return rec, nil
}

// Decode converts a record into T using json tags. Numbers are converted
// between kinds and RFC 3339 strings decode into time.Time.
func Decode[T any](rec types.Record) (*T, error) {
	out := new(T)
	if err := decodeInto(rec, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeInto(rec types.Record, target interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]interface{}(rec)); err != nil {
		return fmt.Errorf("failed to decode record %q: %w", rec.ID(), err)
	}
	return nil
}
