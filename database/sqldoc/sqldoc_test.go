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

package sqldoc

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

func testConfig(t *testing.T) *database.Config {
	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.Type = database.TypeSQLite
	cfg.ConnectionConfig.DBName = "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	cfg.ConnectionConfig.HealthCheckInterval = 0
	return cfg
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), testConfig(t), database.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	users := store.Collection("users")

	doc := users.NewDoc()
	require.NoError(t, doc.Set(ctx, types.Record{"name": "ana", "age": 30, "id": "ignored"}, false))

	got, err := doc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc.ID(), got.ID())
	assert.Equal(t, "ana", got["name"])
	assert.Equal(t, float64(30), got["age"])

	require.NoError(t, doc.Update(ctx, types.Record{"profile.city": "Lisbon"}))
	require.NoError(t, doc.Set(ctx, types.Record{"age": 31}, true))
	got, err = doc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ana", got["name"])
	assert.Equal(t, float64(31), got["age"])
	assert.Equal(t, "Lisbon", got["profile"].(map[string]interface{})["city"])

	require.NoError(t, doc.Set(ctx, types.Record{"name": "bea"}, false))
	got, err = doc.Get(ctx)
	require.NoError(t, err)
	assert.NotContains(t, got, "age", "set without merge replaces the document")

	require.NoError(t, doc.Delete(ctx))
	_, err = doc.Get(ctx)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(users.Doc("missing").Update(ctx, types.Record{"a": 1})))
}

func TestQueriesAndSubCollections(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	users := store.Collection("users")
	for id, age := range map[string]int{"u1": 40, "u2": 20, "u3": 30} {
		require.NoError(t, users.Doc(id).Set(ctx, types.Record{"age": age}, false))
	}
	require.NoError(t, store.Doc("users/u1/posts/p1").Set(ctx, types.Record{"title": "hi"}, false))

	docs, err := users.
		Where(database.Predicate{Field: "age", Op: types.OpGreaterThan, Value: 25}).
		OrderBy("age", database.Desc).
		Documents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u3"}, types.Records(docs).IDs())

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n, "sub-collection documents are not counted")

	posts, err := users.Doc("u1").Collection("posts").Documents(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "hi", posts[0]["title"])
}

func TestGetAllAcrossCollections(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Doc("tags/t1").Set(ctx, types.Record{"name": "A"}, false))
	require.NoError(t, store.Doc("users/u1").Set(ctx, types.Record{"name": "U"}, false))

	got, err := store.GetAll(ctx, []database.DocumentRef{
		store.Doc("users/u1"),
		store.Doc("tags/nope"),
		store.Doc("tags/t1"),
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "U", got[0]["name"])
	assert.Nil(t, got[1])
	assert.Equal(t, "t1", got[2].ID())
}

func TestBulkWriter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	coll := store.Collection("stock")
	require.NoError(t, coll.Doc("s1").Set(ctx, types.Record{"qty": 1}, false))
	require.NoError(t, coll.Doc("s2").Set(ctx, types.Record{"qty": 2}, false))

	bw := store.BulkWriter(ctx)
	require.NoError(t, bw.Update(coll.Doc("s1"), types.Record{"qty": 10}))
	require.NoError(t, bw.Set(coll.Doc("s3"), types.Record{"qty": 3}, false))
	require.NoError(t, bw.Delete(coll.Doc("s2")))
	require.NoError(t, bw.Update(coll.Doc("ghost"), types.Record{"qty": 0}))

	err := bw.End(ctx)
	assert.True(t, errors.IsNotFound(err))

	docs, err := coll.OrderBy("qty", database.Asc).Documents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3", "s1"}, types.Records(docs).IDs())
}

func TestRegisteredDriverMigrates(t *testing.T) {
	ctx := context.Background()
	client, err := database.Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer client.Close()

	store, ok := client.(*Store)
	require.True(t, ok)

	applied, err := database.NewMigrationManager(store.Manager().GetDB(), database.NopLogger{}).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	var versions []string
	for _, m := range applied {
		versions = append(versions, m.Version)
	}
	assert.Equal(t, []string{"000_create_firecrud_documents", "001_index_documents_updated_at"}, versions)
	require.NoError(t, Migrate(ctx, store.Manager(), database.NopLogger{}), "applied steps are skipped")
	assert.True(t, store.Manager().HealthCheck(ctx).Healthy)
}

func TestMissingTableAsksForMigrations(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.EnableMigrateOnStartup = false
	store, err := Open(ctx, cfg, database.NopLogger{})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Collection("users").Documents(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run migrations first")
}
