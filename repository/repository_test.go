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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/database/memory"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

func newRepo(t *testing.T, store *memory.Store, cfg Config) Repository {
	t.Helper()
	cfg.Logger = database.NopLogger{}
	repo, err := NewRepository(store, cfg)
	require.NoError(t, err)
	return repo
}

func put(t *testing.T, store *memory.Store, path string, data types.Record) {
	t.Helper()
	doc := store.Doc(path)
	require.NotNil(t, doc, path)
	require.NoError(t, doc.Set(context.Background(), data, false))
}

func seedItems(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		put(t, store, fmt.Sprintf("items/i%02d", i), types.Record{
			"n":          i,
			"created_at": fmt.Sprintf("2025-01-01T00:00:%02d.000Z", i),
		})
	}
}

func TestPaginate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedItems(t, store, 25)
	repo := newRepo(t, store, Config{Collection: "items"})

	page, err := repo.Paginate(ctx, FindOptions{}, types.PageRequest{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 10, page.Limit)
	require.Len(t, page.Data, 5)
	assert.Equal(t, "i04", page.Data[0].ID(), "newest first")
	assert.Equal(t, "i00", page.Data[4].ID())

	beyond, err := repo.Paginate(ctx, FindOptions{}, types.PageRequest{Page: 5, Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, beyond.Data)
	assert.Empty(t, beyond.Data)
	assert.Equal(t, 25, beyond.TotalItems)
	assert.Equal(t, 3, beyond.TotalPages)
}

func TestPaginateDefaults(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedItems(t, store, 25)
	repo := newRepo(t, store, Config{Collection: "items"})

	for _, p := range []int{0, -3} {
		page, err := repo.Paginate(ctx, FindOptions{}, types.PageRequest{Page: p})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, types.DefaultLimit, page.Limit)
		require.Len(t, page.Data, 10)
		assert.Equal(t, "i24", page.Data[0].ID())
	}

	empty := newRepo(t, memory.New(), Config{Collection: "nothing"})
	page, err := empty.Paginate(ctx, FindOptions{}, types.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalItems)
	assert.Equal(t, 0, page.TotalPages)
	assert.Empty(t, page.Data)
}

func TestPaginateWithFilters(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedItems(t, store, 25)
	repo := newRepo(t, store, Config{Collection: "items"})

	opts := FindOptions{QueryOptions: types.QueryOptions{
		Where: types.FilterExpression{"n": map[string]interface{}{"$greaterThanOrEqual": 20}},
	}}
	page, err := repo.Paginate(ctx, opts, types.PageRequest{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, []string{"i24", "i23"}, types.Records(page.Data).IDs())
}

func TestFindAllEmptyFilterReturnsEverything(t *testing.T) {
	store := memory.New()
	seedItems(t, store, 4)
	repo := newRepo(t, store, Config{Collection: "items"})

	all, err := repo.FindAll(context.Background(), FindOptions{QueryOptions: types.QueryOptions{
		Where: types.FilterExpression{"n": ""},
	}})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestWhereAndOrWhere(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	put(t, store, "users/a", types.Record{"role": "admin", "age": 50, "name": "ana"})
	put(t, store, "users/b", types.Record{"role": "user", "age": 40, "name": "bea"})
	put(t, store, "users/c", types.Record{"role": "user", "age": 10, "name": "cris"})
	put(t, store, "users/d", types.Record{"role": "user", "age": 12, "name": "dan"})
	repo := newRepo(t, store, Config{Collection: "users"})

	got, err := repo.FindAll(ctx, FindOptions{QueryOptions: types.QueryOptions{
		Where: types.FilterExpression{"role": "user"},
		OrWhere: []types.FilterExpression{
			{"age": types.GreaterThan(30)},
			{"name": "dan"},
		},
		Select: []string{"name"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []types.Record{{"id": "b", "name": "bea"}, {"id": "d", "name": "dan"}}, got)

	n, err := repo.Count(ctx, types.QueryOptions{Where: types.FilterExpression{"role": types.NotEqual("user")}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.FindAll(ctx, FindOptions{QueryOptions: types.QueryOptions{
		Where: types.FilterExpression{"age": map[string]interface{}{"$near": 1}},
	}})
	assert.True(t, errors.IsValidationError(err))
}

func TestCreateFindUpdate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := newRepo(t, store, Config{Collection: "users"})

	created, err := repo.Create(ctx, types.Record{"id": "mine", "name": "ana"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID())
	assert.NotEqual(t, "mine", created.ID())
	assert.NotEmpty(t, created[types.FieldCreatedAt])
	assert.Equal(t, created[types.FieldCreatedAt], created[types.FieldUpdatedAt])

	found, err := repo.FindOne(ctx, FindOptions{QueryOptions: types.QueryOptions{
		Where: types.FilterExpression{"id": created.ID()},
	}})
	require.NoError(t, err)
	assert.Equal(t, created, found)

	byID, err := repo.FindByID(ctx, created.ID(), FindOptions{QueryOptions: types.QueryOptions{Select: []string{"name"}}})
	require.NoError(t, err)
	assert.Equal(t, types.Record{"id": created.ID(), "name": "ana"}, byID)

	updated, err := repo.Update(ctx, created.ID(), types.Record{"name": "bea", "created_at": "tampered"})
	require.NoError(t, err)
	assert.Equal(t, "bea", updated["name"])
	assert.Equal(t, created[types.FieldCreatedAt], updated[types.FieldCreatedAt])
	assert.NotEmpty(t, updated[types.FieldUpdatedAt])

	_, err = repo.Update(ctx, "missing", types.Record{"name": "x"})
	assert.True(t, errors.IsNotFound(err))

	_, err = repo.FindOne(ctx, FindOptions{QueryOptions: types.QueryOptions{
		Where: types.FilterExpression{"name": "nobody"},
	}})
	assert.True(t, errors.IsNotFound(err))

	_, err = repo.FindByID(ctx, "missing", FindOptions{})
	assert.True(t, errors.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedItems(t, store, 3)
	repo := newRepo(t, store, Config{Collection: "items"})

	before := store.Reads()
	_, err := repo.Delete(ctx, nil)
	assert.True(t, errors.IsValidationError(err))
	_, err = repo.Delete(ctx, []string{""})
	assert.True(t, errors.IsValidationError(err))
	assert.Equal(t, before, store.Reads(), "no store access for empty ids")

	n, err := repo.Delete(ctx, []string{"i00", "i01", "i01", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, store.Len("items"))
}

func TestUpdateBulk(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	put(t, store, "stock/s1", types.Record{"qty": 1, "sku": "A"})
	put(t, store, "stock/s2", types.Record{"qty": 2, "sku": "B"})
	repo := newRepo(t, store, Config{Collection: "stock"})

	n, err := repo.UpdateBulk(ctx, []BulkWrite{
		{Where: types.FilterExpression{"id": "s1"}, Data: types.Record{"qty": 10}},
		{Where: types.FilterExpression{"id": "ghost"}, Data: types.Record{"qty": 0}},
		{Where: types.FilterExpression{"id": "s9"}, Data: types.Record{"qty": 9}, Upsert: true},
		{Doc: repo.Collection().Doc("s2"), Data: types.Record{"qty": 20}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	s1, err := repo.FindByID(ctx, "s1", FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 10, s1["qty"])
	assert.Equal(t, "A", s1["sku"])
	assert.NotEmpty(t, s1[types.FieldUpdatedAt])

	s9, err := repo.FindByID(ctx, "s9", FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 9, s9["qty"])
	assert.NotEmpty(t, s9[types.FieldCreatedAt])

	assert.Equal(t, 3, store.Len("stock"), "ghost is not created")
}

func TestCollectionPath(t *testing.T) {
	path, err := CollectionPath(Config{Collection: "users", CollectionPrefix: "orgs/o1"})
	require.NoError(t, err)
	assert.Equal(t, "orgs/o1/users", path)

	path, err = CollectionPath(Config{Collection: "users", CollectionPrefix: "orgs/o1", DisableCollectionPrefix: true})
	require.NoError(t, err)
	assert.Equal(t, "users", path)

	path, err = CollectionPath(Config{Collection: "users", OnCollectionInit: func(p string) (string, error) {
		return "tenants/t1/" + p, nil
	}})
	require.NoError(t, err)
	assert.Equal(t, "tenants/t1/users", path)

	_, err = CollectionPath(Config{})
	assert.True(t, errors.IsValidationError(err))

	_, err = NewRepository(memory.New(), Config{Collection: "users/u1"})
	assert.True(t, errors.IsPathError(err))
}

func TestPrefixedRepositoryUsesSubCollection(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := newRepo(t, store, Config{Collection: "users", CollectionPrefix: "orgs/o1"})

	created, err := repo.Create(ctx, types.Record{"name": "ana"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len("orgs/o1/users"))
	assert.Equal(t, 0, store.Len("users"))
	assert.Equal(t, "orgs/o1/users", repo.Collection().Path())

	got, err := store.Doc("orgs/o1/users/" + created.ID()).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ana", got["name"])
}
