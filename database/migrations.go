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
	"fmt"
	"os"
	"reflect"
	"sort"
	"time"

	"github.com/uptrace/bun"
)

// MigrationManager creates model tables and runs custom migration steps,
// recording each applied step in the migrations table.
type MigrationManager struct {
	db     *bun.DB
	logger Logger
	extra  []MigrationItem
}

// Migration represents an applied migration record stored in the database.
type Migration struct {
	bun.BaseModel `bun:"table:firecrud_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// NewMigrationManager constructs a MigrationManager over db.
func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &MigrationManager{db: db, logger: logger}
}

// AddMigration appends a custom step; steps run after table creation in
// ascending version order.
func (mm *MigrationManager) AddMigration(item MigrationItem) *MigrationManager {
	mm.extra = append(mm.extra, item)
	return mm
}

// RunMigrations creates the migration tracking table if needed, then creates
// every registered model table and runs the custom steps not yet applied.
func (mm *MigrationManager) RunMigrations(ctx context.Context, registry ModelRegistry) error {
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range mm.getAllMigrations(registry) {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}

	mm.logger.Debug("Database migrations completed")
	return nil
}

func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (mm *MigrationManager) getAllMigrations(registry ModelRegistry) []MigrationItem {
	var migrations []MigrationItem
	if registry != nil {
		for _, model := range registry.Instances() {
			table := mm.tableName(model)
			model := model
			migrations = append(migrations, MigrationItem{
				Version:     "000_create_" + table,
				Name:        "create_" + table,
				Description: fmt.Sprintf("Create table %s", table),
				Up: func(ctx context.Context, db bun.IDB) error {
					_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
					return err
				},
			})
		}
	}

	extra := make([]MigrationItem, len(mm.extra))
	copy(extra, mm.extra)
	sort.SliceStable(extra, func(i, j int) bool {
		return extra[i].Version < extra[j].Version
	})
	return append(migrations, extra...)
}

func (mm *MigrationManager) tableName(model interface{}) string {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if table := mm.db.Table(t); table != nil && table.Name != "" {
		return table.Name
	}
	return t.Name()
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&Migration{
				Version:     migration.Version,
				Name:        migration.Name,
				AppliedAt:   time.Now(),
				Description: migration.Description,
			}).
			Exec(ctx)
		if err != nil {
			return err
		}
		mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
		return nil
	})
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}
