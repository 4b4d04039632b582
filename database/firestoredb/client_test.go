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

package firestoredb

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

func TestEntityFilter(t *testing.T) {
	got, err := EntityFilter(nil, database.And{Filters: []database.Filter{
		database.Predicate{Field: "age", Op: types.OpGreaterThanOrEqual, Value: 18},
		database.Or{Filters: []database.Filter{
			database.Predicate{Field: "role", Op: types.OpIn, Value: []string{"admin", "owner"}},
			database.Predicate{Field: "profile.city", Op: types.OpEqual, Value: "Lisbon"},
		}},
	}})
	require.NoError(t, err)
	assert.Equal(t, firestore.AndFilter{Filters: []firestore.EntityFilter{
		firestore.PropertyFilter{Path: "age", Operator: ">=", Value: 18},
		firestore.OrFilter{Filters: []firestore.EntityFilter{
			firestore.PropertyFilter{Path: "role", Operator: "in", Value: []interface{}{"admin", "owner"}},
			firestore.PropertyFilter{Path: "profile.city", Operator: "==", Value: "Lisbon"},
		}},
	}}, got)
}

func TestEntityFilterCollapsesGroups(t *testing.T) {
	got, err := EntityFilter(nil, database.Or{})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = EntityFilter(nil, database.And{Filters: []database.Filter{
		database.Predicate{Field: "tags", Op: types.OpArrayContains, Value: "go"},
	}})
	require.NoError(t, err)
	assert.Equal(t, firestore.PropertyFilter{Path: "tags", Operator: "array-contains", Value: "go"}, got)
}

func TestEntityFilterRejectsBadOperands(t *testing.T) {
	_, err := EntityFilter(nil, database.Predicate{Field: "role", Op: types.OpNotIn, Value: "admin"})
	assert.True(t, errors.IsValidationError(err))

	_, err = EntityFilter(nil, database.Predicate{Field: "role", Op: types.Operator(99), Value: 1})
	assert.True(t, errors.IsValidationError(err))
}

func TestEntityFilterMatchesDocumentIDs(t *testing.T) {
	t.Setenv("FIRESTORE_EMULATOR_HOST", "localhost:8080")
	fs, err := firestore.NewClient(context.Background(), "firecrud-test")
	require.NoError(t, err)
	defer fs.Close()
	coll := fs.Collection("users")

	got, err := EntityFilter(coll, database.Predicate{Field: "id", Op: types.OpIn, Value: []string{"u1", "", "u2"}})
	require.NoError(t, err)
	pf, ok := got.(firestore.PropertyFilter)
	require.True(t, ok)
	assert.Equal(t, firestore.DocumentID, pf.Path)
	refs, ok := pf.Value.([]*firestore.DocumentRef)
	require.True(t, ok)
	require.Len(t, refs, 2)
	assert.Equal(t, "u1", refs[0].ID)
	assert.Equal(t, "u2", refs[1].ID)
}

func TestNormalize(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	got := normalize(map[string]interface{}{
		"when": ts,
		"list": []interface{}{map[string]interface{}{"n": int64(1)}},
	})
	assert.Equal(t, map[string]interface{}{
		"when": ts.UTC(),
		"list": []interface{}{map[string]interface{}{"n": int64(1)}},
	}, got)
}

func TestUpdatesAreSorted(t *testing.T) {
	got := updates(types.Record{"b": 2, "a.c": 1, "id": "x"})
	assert.Equal(t, []firestore.Update{{Path: "a.c", Value: 1}, {Path: "b", Value: 2}}, got)
}

// TestEmulator runs against a local emulator when FIRESTORE_EMULATOR_HOST is set.
func TestEmulator(t *testing.T) {
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := Open(ctx, &database.ConnectionConfig{ProjectID: "firecrud-test", EmulatorHost: host}, database.NopLogger{})
	require.NoError(t, err)
	defer client.Close()

	coll := client.Collection("firecrud_emulator_" + time.Now().Format("150405.000"))
	require.NotNil(t, coll)
	doc := coll.NewDoc()
	require.NoError(t, doc.Set(ctx, types.Record{"name": "ana", "age": 30}, false))

	got, err := doc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ana", got["name"])

	n, err := coll.Where(database.Predicate{Field: "age", Op: types.OpGreaterThan, Value: 20}).Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	err = coll.Doc("missing").Update(ctx, types.Record{"a": 1})
	assert.True(t, errors.IsNotFound(err))
	require.NoError(t, doc.Delete(ctx))
}
