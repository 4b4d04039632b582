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
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

// Upsert inserts model, overwriting fields when a row with the same
// duplicateKeys already exists. model may be a pointer to a struct or to a
// slice of structs. The statement follows the dialect of idb: ON CONFLICT on
// postgres and sqlite, ON DUPLICATE KEY on mysql, otherwise an insert that
// falls back to an update by primary key.
func Upsert(ctx context.Context, idb bun.IDB, model interface{}, fields []string, duplicateKeys []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	features := idb.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		return upsertOnConflict(ctx, idb.NewInsert(), model, fields, duplicateKeys)
	case features.Has(feature.InsertOnDuplicateKey):
		return upsertOnDuplicateKey(ctx, idb.NewInsert(), model, fields)
	default:
		return upsertFallback(ctx, idb, model)
	}
}

func upsertOnDuplicateKey(ctx context.Context, insertQuery *bun.InsertQuery, model interface{}, fields []string) error {
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("%s = VALUES(%s)", field, field))
	}
	_, err := insertQuery.
		Model(model).
		On("DUPLICATE KEY UPDATE " + strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return err
}

func upsertOnConflict(ctx context.Context, insertQuery *bun.InsertQuery, model interface{}, fields []string, duplicateKeys []string) error {
	if len(duplicateKeys) == 0 {
		duplicateKeys = []string{"id"}
	}
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("%s = EXCLUDED.%s", field, field))
	}
	_, err := insertQuery.
		Model(model).
		On("CONFLICT (" + strings.Join(duplicateKeys, ",") + ") DO UPDATE").
		Set(strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return err
}

func upsertFallback(ctx context.Context, idb bun.IDB, model interface{}) error {
	_, err := idb.NewInsert().Model(model).Exec(ctx)
	if err == nil || !IsDuplicateKey(err) {
		return err
	}
	if _, updateErr := idb.NewUpdate().Model(model).WherePK().Exec(ctx); updateErr != nil {
		return fmt.Errorf("upsert failed: insert error: %v, update error: %v", err, updateErr)
	}
	return nil
}
