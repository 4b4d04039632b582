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

	"github.com/tomoncle/firecrud/database/memory"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

func seedBlog(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	put(t, store, "tags/t1", types.Record{"name": "A"})
	put(t, store, "tags/t2", types.Record{"name": "B"})
	put(t, store, "posts/p1", types.Record{"title": "first", "tagIds": []interface{}{"t1", "t2"}, "authorId": "u1"})
	put(t, store, "posts/p2", types.Record{"title": "second", "tagIds": []interface{}{"t2", "gone", "t1"}, "authorId": "u9"})
	put(t, store, "posts/p3", types.Record{"title": "third"})
	put(t, store, "users/u1", types.Record{"name": "ana"})
	return store
}

func TestPluralRelation(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, seedBlog(t), Config{Collection: "posts"})

	got, err := repo.FindByID(ctx, "p1", FindOptions{Relations: []Relation{{
		Collection:      "tags",
		CollectionLabel: "tags",
		LocalField:      "tagIds",
		ForeignField:    "id",
	}}})
	require.NoError(t, err)
	assert.Equal(t, []types.Record{
		{"id": "t1", "name": "A"},
		{"id": "t2", "name": "B"},
	}, got["tags"])

	all, err := repo.FindAll(ctx, FindOptions{Relations: []Relation{{
		Collection:   "tags",
		LocalField:   "tagIds",
		ForeignField: "id",
	}}})
	require.NoError(t, err)
	require.Len(t, all, 3)
	second := all[1]["tags"].([]types.Record)
	require.Len(t, second, 3, "one position per local value")
	assert.Equal(t, "t2", second[0].ID())
	assert.Nil(t, second[1])
	assert.Equal(t, "t1", second[2].ID())
	_, ok := all[2]["tags"]
	assert.False(t, ok, "records without the local field get no label")
}

func TestScalarAndJustOneRelations(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, seedBlog(t), Config{Collection: "posts"})

	all, err := repo.FindAll(ctx, FindOptions{Relations: []Relation{
		{Collection: "users", CollectionLabel: "author", LocalField: "authorId", ForeignField: "id"},
		{Collection: "tags", CollectionLabel: "mainTag", LocalField: "tagIds", ForeignField: "id", JustOne: true},
	}})
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, types.Record{"id": "u1", "name": "ana"}, all[0]["author"])
	assert.Nil(t, all[1]["author"])
	assert.Equal(t, "t1", all[0]["mainTag"].(types.Record).ID())
	assert.Equal(t, "t2", all[1]["mainTag"].(types.Record).ID())
}

func TestRelationOptionsSelect(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	put(t, store, "profiles/x", types.Record{"userId": "u1", "bio": "hi", "secret": "s"})
	put(t, store, "users/u1", types.Record{"name": "ana"})
	repo := newRepo(t, store, Config{Collection: "users"})

	got, err := repo.FindByID(ctx, "u1", FindOptions{Relations: []Relation{{
		Collection:      "profiles",
		CollectionLabel: "profile",
		LocalField:      "id",
		ForeignField:    "userId",
		Options:         types.QueryOptions{Select: []string{"bio"}},
	}}})
	require.NoError(t, err)
	assert.Equal(t, types.Record{"id": "x", "bio": "hi", "userId": "u1"}, got["profile"])
}

func TestRelationFailureIsWrapped(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	store := seedBlog(t).WithQueryError("tags", boom)
	repo := newRepo(t, store, Config{Collection: "posts"})

	_, err := repo.FindAll(ctx, FindOptions{Relations: []Relation{{
		Collection:      "tags",
		CollectionLabel: "tags",
		LocalField:      "tagIds",
		ForeignField:    "id",
	}}})
	require.Error(t, err)
	assert.True(t, errors.IsRelationError(err))
	assert.ErrorIs(t, err, boom)
}

func TestRelationLookupsAreBatched(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for i := 0; i < 5; i++ {
		put(t, store, fmt.Sprintf("users/u%d", i), types.Record{"name": fmt.Sprintf("user %d", i)})
		put(t, store, fmt.Sprintf("posts/p%d", i), types.Record{"authorId": fmt.Sprintf("u%d", i)})
	}
	repo := newRepo(t, store, Config{Collection: "posts", RelationBatchSize: 2})

	before := store.Reads()
	all, err := repo.FindAll(ctx, FindOptions{Relations: []Relation{{
		Collection:      "users",
		CollectionLabel: "author",
		LocalField:      "authorId",
		ForeignField:    "id",
	}}})
	require.NoError(t, err)
	assert.Equal(t, 1+3, store.Reads()-before, "one page read plus ceil(5/2) lookups")
	for i, rec := range all {
		assert.Equal(t, fmt.Sprintf("user %d", i), rec["author"].(types.Record)["name"])
	}
}

func TestRelationWithoutEntriesSkipsLookup(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	put(t, store, "posts/p1", types.Record{"title": "orphan"})
	repo := newRepo(t, store, Config{Collection: "posts"})

	before := store.Reads()
	_, err := repo.FindAll(ctx, FindOptions{Relations: []Relation{{
		Collection: "users", LocalField: "authorId", ForeignField: "id",
	}}})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Reads()-before)
}

func seedOrgs(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	put(t, store, "countries/pt", types.Record{"name": "Portugal"})
	put(t, store, "orgs/o1", types.Record{"name": "Acme", "countryId": "pt"})
	put(t, store, "orgs/o2", types.Record{"name": "Globex"})
	put(t, store, "teams/a", types.Record{"name": "core", "orgId": "o1", "meta": map[string]interface{}{"partnerIds": []interface{}{"o2", "o1"}}})
	put(t, store, "teams/b", types.Record{"name": "edge", "orgId": "o1"})
	put(t, store, "teams/c", types.Record{"name": "lost", "orgId": "nope"})
	return store
}

func TestNestedReferences(t *testing.T) {
	ctx := context.Background()
	store := seedOrgs(t)
	repo := newRepo(t, store, Config{Collection: "teams"})

	before := store.Reads()
	all, err := repo.FindAll(ctx, FindOptions{References: []Reference{{
		Collection:      "orgs",
		CollectionLabel: "org",
		Field:           "orgId",
		Nested: &Reference{
			Collection:      "countries",
			CollectionLabel: "country",
			Field:           "countryId",
		},
	}}})
	require.NoError(t, err)
	assert.Equal(t, 3, store.Reads()-before, "one read per level, ids de-duplicated")

	org := all[0]["org"].(types.Record)
	assert.Equal(t, "Acme", org["name"])
	assert.Equal(t, types.Record{"id": "pt", "name": "Portugal"}, org["country"])
	assert.Equal(t, "Acme", all[1]["org"].(types.Record)["name"])
	assert.Nil(t, all[2]["org"])
}

func TestSequenceReferenceOnDottedField(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, seedOrgs(t), Config{Collection: "teams"})

	got, err := repo.FindByID(ctx, "a", FindOptions{References: []Reference{{
		Collection:      "orgs",
		CollectionLabel: "partners",
		Field:           "meta.partnerIds",
	}}})
	require.NoError(t, err)
	partners := got["partners"].([]types.Record)
	require.Len(t, partners, 2)
	assert.Equal(t, "Globex", partners[0]["name"])
	assert.Equal(t, "Acme", partners[1]["name"])
}

func TestCyclicReferencesAreRejected(t *testing.T) {
	ctx := context.Background()
	store := seedOrgs(t)
	repo := newRepo(t, store, Config{Collection: "teams", MaxReferenceDepth: 3})

	cyclic := &Reference{Collection: "orgs", Field: "orgId"}
	cyclic.Nested = cyclic

	_, err := repo.FindByID(ctx, "a", FindOptions{References: []Reference{*cyclic}})
	assert.True(t, errors.IsValidationError(err))

	shallow := Reference{Collection: "orgs", Field: "orgId", Nested: &Reference{Collection: "countries", Field: "countryId"}}
	_, err = repo.FindByID(ctx, "a", FindOptions{References: []Reference{shallow}})
	assert.NoError(t, err)
}

func TestInvalidReferencePath(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, seedOrgs(t), Config{Collection: "teams"})

	_, err := repo.FindAll(ctx, FindOptions{References: []Reference{{Collection: "orgs/o1", Field: "orgId"}}})
	assert.True(t, errors.IsPathError(err))

	_, err = repo.FindAll(ctx, FindOptions{Relations: []Relation{{Collection: "", LocalField: "orgId", ForeignField: "id"}}})
	assert.True(t, errors.IsPathError(err))
	assert.True(t, errors.IsRelationError(err))
}
