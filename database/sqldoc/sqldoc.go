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

// Package sqldoc stores documents in one bun table keyed by collection path
// and id, so sqlite, postgres and mysql can back the document store.
// Queries are evaluated by docquery over the rows of a collection.
package sqldoc

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/uptrace/bun"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/database/docquery"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

func init() {
	database.Register(func(ctx context.Context, cfg *database.Config, logger database.Logger) (database.Client, error) {
		return Open(ctx, cfg, logger)
	}, database.TypeSQLite, "sqlite3", database.TypePostgres, "postgresql", database.TypeMySQL)
}

const documentTable = "firecrud_documents"

// documentRow is one stored document.
type documentRow struct {
	bun.BaseModel `bun:"table:firecrud_documents,alias:d"`

	Collection string       `bun:"collection,pk,type:varchar(255)"`
	ID         string       `bun:"id,pk,type:varchar(255)"`
	Data       types.Record `bun:"data,notnull"`
	UpdatedAt  time.Time    `bun:"updated_at,notnull"`
}

var rowFields = []string{"data", "updated_at"}

// Models returns the tables the store needs.
func Models() database.ModelRegistry {
	return database.NewModelRegistry(database.NewModelAdapter((*documentRow)(nil), 0))
}

// Migrate creates the document table and its indexes on the database of
// manager. Applied steps are recorded and skipped on later runs.
func Migrate(ctx context.Context, manager database.AbstractDatabaseManager, logger database.Logger) error {
	db := manager.GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	return database.NewMigrationManager(db, logger).
		AddMigration(database.MigrationItem{
			Version:     "001_index_documents_updated_at",
			Name:        "index_documents_updated_at",
			Description: "Index documents by collection and update time",
			Up: func(ctx context.Context, db bun.IDB) error {
				_, err := db.NewCreateIndex().
					Model((*documentRow)(nil)).
					Index(documentTable + "_updated_at_idx").
					Column("collection", "updated_at").
					Exec(ctx)
				return err
			},
		}).
		RunMigrations(ctx, Models())
}

// Store is a database.Client over a bun database.
type Store struct {
	db      *bun.DB
	manager database.AbstractDatabaseManager
	logger  database.Logger
}

var (
	_ database.Client   = (*Store)(nil)
	_ docquery.Backend = (*Store)(nil)
)

// Open connects the SQL database described by cfg and creates the document
// table when EnableMigrateOnStartup is set.
func Open(ctx context.Context, cfg *database.Config, logger database.Logger) (*Store, error) {
	if logger == nil {
		logger = database.GetLogger()
	}
	factory := database.NewDatabaseFactory()
	factory.SetLogger(logger)
	manager, err := factory.CreateFromConfig(ctx, &cfg.ConnectionConfig)
	if err != nil {
		return nil, err
	}
	if cfg.EnableMigrateOnStartup {
		if err := Migrate(ctx, manager, logger); err != nil {
			_ = manager.Disconnect()
			return nil, err
		}
	}
	return New(manager, logger), nil
}

// New wraps a connected manager. The document table must exist.
func New(manager database.AbstractDatabaseManager, logger database.Logger) *Store {
	if logger == nil {
		logger = database.GetLogger()
	}
	return &Store{db: manager.GetDB(), manager: manager, logger: logger}
}

// Manager exposes the underlying connection manager, e.g. for health checks.
func (s *Store) Manager() database.AbstractDatabaseManager { return s.manager }

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

func (s *Store) Close() error { return s.manager.Disconnect() }

func (s *Store) NewID() string { return xid.New().String() }

func (s *Store) Load(ctx context.Context, coll string) ([]types.Record, error) {
	var rows []documentRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("collection = ?", coll).
		Order("id").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, tableErr(err)
	}
	out := make([]types.Record, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	return out, nil
}

// Fetch runs one IN query per collection named by keys.
func (s *Store) Fetch(ctx context.Context, keys []docquery.Key) ([]types.Record, error) {
	byCollection := make(map[string][]string)
	var order []string
	for _, k := range keys {
		if _, ok := byCollection[k.Collection]; !ok {
			order = append(order, k.Collection)
		}
		byCollection[k.Collection] = append(byCollection[k.Collection], k.ID)
	}

	found := make(map[docquery.Key]types.Record, len(keys))
	for _, coll := range order {
		var rows []documentRow
		err := s.db.NewSelect().
			Model(&rows).
			Where("collection = ?", coll).
			Where("id IN (?)", bun.In(byCollection[coll])).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, tableErr(err)
		}
		for _, row := range rows {
			found[docquery.Key{Collection: row.Collection, ID: row.ID}] = row.record()
		}
	}

	out := make([]types.Record, len(keys))
	for i, k := range keys {
		if rec, ok := found[k]; ok {
			out[i] = rec.DeepClone()
		}
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, coll, id string, data types.Record, merge bool) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return setRow(ctx, tx, coll, id, data, merge)
	})
}

func (s *Store) Update(ctx context.Context, coll, id string, data types.Record) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return updateRow(ctx, tx, coll, id, data)
	})
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	return deleteRow(ctx, s.db, coll, id)
}

// flush applies bulk operations in one transaction. Updates of missing
// documents are reported without aborting the others; any other failure rolls
// the whole batch back.
func (s *Store) flush(ctx context.Context, ops []docquery.WriteOp) error {
	var notFound []error
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, op := range ops {
			var err error
			switch op.Kind {
			case docquery.WriteSet:
				err = setRow(ctx, tx, op.Key.Collection, op.Key.ID, op.Data, op.Merge)
			case docquery.WriteUpdate:
				err = updateRow(ctx, tx, op.Key.Collection, op.Key.ID, op.Data)
			case docquery.WriteDelete:
				err = deleteRow(ctx, tx, op.Key.Collection, op.Key.ID)
			}
			if errors.IsNotFound(err) {
				notFound = append(notFound, err)
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Bulk write rolled back", "ops", len(ops), "error", err)
		return err
	}
	s.logger.Debug("Bulk write flushed", "ops", len(ops), "missing", len(notFound))
	return errors.Join(notFound...)
}

// tableErr points at migrations when the document table is missing.
func tableErr(err error) error {
	if database.IsNoTable(err) {
		return fmt.Errorf("table %s is missing, run migrations first: %w", documentTable, err)
	}
	return err
}

func (r documentRow) record() types.Record {
	return r.Data.WithID(r.ID)
}

func getRow(ctx context.Context, idb bun.IDB, coll, id string) (*documentRow, error) {
	row := new(documentRow)
	err := idb.NewSelect().
		Model(row).
		Where("collection = ?", coll).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func setRow(ctx context.Context, idb bun.IDB, coll, id string, data types.Record, merge bool) error {
	var existing types.Record
	if merge {
		row, err := getRow(ctx, idb, coll, id)
		if err != nil {
			return err
		}
		if row != nil {
			existing = row.Data
		}
	}
	row := &documentRow{
		Collection: coll,
		ID:         id,
		Data:       docquery.ApplySet(existing, data, merge),
		UpdatedAt:  time.Now().UTC(),
	}
	return database.Upsert(ctx, idb, row, rowFields, []string{"collection", "id"})
}

func updateRow(ctx context.Context, idb bun.IDB, coll, id string, data types.Record) error {
	row, err := getRow(ctx, idb, coll, id)
	if err != nil {
		return err
	}
	if row == nil {
		return errors.NewNotFoundError(coll, id)
	}
	if row.Data == nil {
		row.Data = make(types.Record)
	}
	docquery.ApplyUpdate(row.Data, data.DeepClone())
	row.UpdatedAt = time.Now().UTC()
	_, err = idb.NewUpdate().
		Model(row).
		Column(rowFields...).
		WherePK().
		Exec(ctx)
	return err
}

func deleteRow(ctx context.Context, idb bun.IDB, coll, id string) error {
	_, err := idb.NewDelete().
		Model((*documentRow)(nil)).
		Where("collection = ?", coll).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
