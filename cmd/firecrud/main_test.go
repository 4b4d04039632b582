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

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/database/memory"
	"github.com/tomoncle/firecrud/types"
)

const sampleConfig = `
address: 127.0.0.1:9090
log_level: debug
database:
  connection_config:
    type: memory
    conn_max_lifetime: 2h
resources:
  - name: users
    search_keys: [name, email]
  - name: posts
    collection: blog_posts
    order_field: published_at
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firecrud.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	conf, err := loadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", conf.Address)
	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, "text", conf.LogFormat)
	assert.Equal(t, database.TypeMemory, conf.Database.ConnectionConfig.Type)
	assert.Equal(t, 2*time.Hour, conf.Database.ConnectionConfig.ConnMaxLifetime)
	assert.Equal(t, 100, conf.Database.ConnectionConfig.MaxOpenConns, "defaults survive")
	assert.True(t, conf.Database.EnableMigrateOnStartup)

	require.Len(t, conf.Resources, 2)
	assert.Equal(t, "users", conf.Resources[0].Collection)
	assert.Equal(t, []string{"name", "email"}, conf.Resources[0].SearchKeys)
	assert.Equal(t, "blog_posts", conf.Resources[1].Collection)
	assert.Equal(t, "published_at", conf.Resources[1].OrderField)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("FIRECRUD_ADDRESS", ":7070")
	conf, err := loadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, ":7070", conf.Address)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "resources:\n  - collection: x\n"))
	assert.ErrorContains(t, err, "has no name")
}

func TestRouter(t *testing.T) {
	conf, err := loadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	store := memory.New()
	handler, err := newRouter(store, conf, database.NopLogger{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"ana","age":3}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, store.Len("users"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?src=ana", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page types.PaginatedResult[types.Record]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "ana", page.Data[0]["name"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(`{"title":"t"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, store.Len("blog_posts"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMigrateRejectsDocumentStores(t *testing.T) {
	conf := &Config{Database: *database.DefaultConfig()}
	err := migrate(t.Context(), conf)
	assert.ErrorContains(t, err, "has no migrations")
}
