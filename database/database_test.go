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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_TYPE", TypePostgres)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "docs")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_CONN_MAX_LIFETIME", "90")
	t.Setenv("FIRESTORE_PROJECT_ID", "proj")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/tmp/creds.json")

	cfg := DefaultConnectionConfig()
	cfg.CredentialsFile = "/etc/explicit.json"
	NewDatabaseFactory().overrideFromEnv(cfg)

	assert.Equal(t, TypePostgres, cfg.Type)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "docs", cfg.DBName)
	assert.Equal(t, 7, cfg.MaxOpenConns)
	assert.Equal(t, 90*time.Second, cfg.ConnMaxLifetime)
	assert.Equal(t, "proj", cfg.ProjectID)
	assert.Equal(t, "/etc/explicit.json", cfg.CredentialsFile, "explicit credentials win")
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connection_config:
  type: sqlite
  dbname: docs
enable_migrate_on_startup: false
`), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, TypeSQLite, cfg.ConnectionConfig.Type)
	assert.Equal(t, "docs", cfg.ConnectionConfig.DBName)
	assert.False(t, cfg.EnableMigrateOnStartup)
	assert.Equal(t, 100, cfg.ConnectionConfig.MaxOpenConns, "defaults survive")
	assert.True(t, cfg.ConnectionConfig.IsSQL())

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuildDSN(t *testing.T) {
	driver, dsn, _, err := buildDSN(&ConnectionConfig{Type: TypePostgres, Username: "u", Password: "p", Host: "h", Port: 5432, DBName: "d"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable&connect_timeout=0", dsn)

	driver, dsn, _, err = buildDSN(&ConnectionConfig{Type: TypeMySQL, Username: "u", Password: "p", Host: "h", Port: 3306, DBName: "d"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", driver)
	assert.True(t, strings.HasPrefix(dsn, "u:p@tcp(h:3306)/d?"))

	_, _, _, err = buildDSN(&ConnectionConfig{Type: "oracle"})
	assert.Error(t, err)

	assert.Equal(t, SQLiteMemoryDSN, sqliteDSN(""))
	assert.Equal(t, "docs.db", sqliteDSN("docs"))
	assert.Equal(t, "file:x?mode=memory", sqliteDSN("file:x?mode=memory"))
	assert.True(t, isSQLiteMemory(sqliteDSN("")))
	assert.False(t, isSQLiteMemory("docs.db"))
}

func TestRegistry(t *testing.T) {
	const storeType = "registry-test"
	if !slices.Contains(Drivers(), storeType) {
		Register(func(ctx context.Context, cfg *Config, logger Logger) (Client, error) {
			return nil, assert.AnError
		}, storeType)
	}
	assert.Contains(t, Drivers(), storeType)
	assert.Panics(t, func() {
		Register(func(ctx context.Context, cfg *Config, logger Logger) (Client, error) { return nil, nil }, storeType)
	})

	cfg := DefaultConfig()
	cfg.ConnectionConfig.Type = storeType
	t.Setenv("DB_TYPE", "")
	_, err := Open(context.Background(), cfg)
	assert.ErrorIs(t, err, assert.AnError)

	cfg.ConnectionConfig.Type = "nope"
	_, err = Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported database type")

	_, err = Open(context.Background(), nil)
	assert.Error(t, err)
}

type widget struct {
	bun.BaseModel `bun:"table:widgets"`

	ID    int64  `bun:"id,pk"`
	Name  string `bun:"name"`
	Color string `bun:"color"`
}

func newSQLiteManager(t *testing.T) AbstractDatabaseManager {
	t.Helper()
	t.Setenv("DB_TYPE", "")
	factory := NewDatabaseFactory()
	factory.SetLogger(NopLogger{})
	manager, err := factory.CreateFromConfig(context.Background(), &ConnectionConfig{
		Type:   TypeSQLite,
		DBName: "file:" + t.Name() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Disconnect() })
	return manager
}

func TestMigrationsAreRecordedOnce(t *testing.T) {
	ctx := context.Background()
	manager := newSQLiteManager(t)
	registry := NewModelRegistry(NewModelAdapter((*widget)(nil), 1))

	require.NoError(t, manager.RunMigrations(ctx, registry))
	require.NoError(t, manager.RunMigrations(ctx, registry))

	applied, err := NewMigrationManager(manager.GetDB(), NopLogger{}).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "000_create_widgets", applied[0].Version)

	status := manager.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.Equal(t, 1, manager.GetStats().MaxOpenConns, "shared memory databases use one connection")
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	manager := newSQLiteManager(t)
	require.NoError(t, manager.RunMigrations(ctx, NewModelRegistry(NewModelAdapter((*widget)(nil), 0))))
	db := manager.GetDB()

	rows := []*widget{{ID: 1, Name: "bolt", Color: "red"}, {ID: 2, Name: "nut", Color: "blue"}}
	require.NoError(t, Upsert(ctx, db, &rows, []string{"name"}, nil))

	rows = []*widget{{ID: 1, Name: "big bolt", Color: "green"}}
	require.NoError(t, Upsert(ctx, db, &rows, []string{"name"}, []string{"id"}))

	var got []widget
	require.NoError(t, db.NewSelect().Model(&got).Order("id ASC").Scan(ctx))
	require.Len(t, got, 2)
	assert.Equal(t, "big bolt", got[0].Name)
	assert.Equal(t, "red", got[0].Color, "only listed fields are overwritten")
	assert.Equal(t, "nut", got[1].Name)

	assert.Error(t, Upsert(ctx, db, &rows, nil, nil))
}

func TestModelRegistryOrdersByPriority(t *testing.T) {
	first := NewModelAdapter("first", 0)
	second := NewModelAdapter("second", 5)
	registry := NewModelRegistry(second, nil, first)
	assert.Equal(t, []interface{}{"first", "second"}, registry.Instances())
}

func TestIsSqlError(t *testing.T) {
	cases := []struct {
		err  error
		is   bool
		kind SQLError
	}{
		{nil, false, UnknownErr},
		{sql.ErrNoRows, true, NoRowsErr},
		{fmt.Errorf("scan: %w", sql.ErrNoRows), true, NoRowsErr},
		{&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true, DuplicateKeyErr},
		{&mysql.MySQLError{Number: 1217}, true, ForeignKeyViolationErr},
		{&mysql.MySQLError{Number: 9999}, true, UnknownErr},
		{errors.New("UNIQUE constraint failed: users.email"), true, DuplicateKeyErr},
		{errors.New(`pq: duplicate key value violates unique constraint "users_pkey"`), true, DuplicateKeyErr},
		{errors.New("SQL logic error: no such table: firecrud_documents (1)"), true, NoTableErr},
		{errors.New(`ERROR: relation "x" already exists (SQLSTATE 42P07)`), true, ExistTableErr},
		{errors.New(`index "idx" already exists`), true, ExistIndexErr},
		{errors.New("NOT NULL constraint failed: a.b"), true, NotNullViolationErr},
		{errors.New("connection refused"), false, UnknownErr},
	}
	for _, tc := range cases {
		is, kind := IsSqlError(tc.err)
		assert.Equal(t, tc.is, is, "%v", tc.err)
		assert.Equal(t, tc.kind, kind, "%v", tc.err)
	}
	assert.True(t, IsDuplicateKey(errors.New("UNIQUE constraint failed: t.id")))
	assert.True(t, IsNoTable(errors.New("no such table: t")))
	assert.False(t, IsNoTable(nil))
}
