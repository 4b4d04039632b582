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
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// SQLError classifies driver errors across mysql, postgres and sqlite.
type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
)

var mysqlErrorNumbers = map[uint16]SQLError{
	1091: NoIndexErr,
	1054: NoColumnErr,
	1061: ExistIndexErr,
	1060: ExistColumnErr,
	1062: DuplicateKeyErr,
	1048: NotNullViolationErr,
	1216: ForeignKeyViolationErr,
	1217: ForeignKeyViolationErr,
	3819: CheckConstraintViolationErr,
	1265: DataTruncatedErr,
}

// messageRule matches a lower-cased postgres or sqlite error message. A rule
// matches when any of its groups has all of its substrings.
type messageRule struct {
	kind   SQLError
	groups [][]string
}

// Rules are tried in order.
var messageRules = []messageRule{
	{NoColumnErr, [][]string{{"sqlstate 42703"}, {"undefined column"}, {"no such column"}}},
	{NoIndexErr, [][]string{{"sqlstate 42704"}, {"no such index"}, {"does not exist", "index"}}},
	{NoTableErr, [][]string{{"sqlstate 42p01"}, {"undefined table"}, {"no such table"}}},
	{ExistIndexErr, [][]string{{"already exists", "index"}}},
	{ExistTableErr, [][]string{{"already exists", "table"}, {"already exists", "relation"}}},
	{DuplicateKeyErr, [][]string{{"duplicate key value"}, {"unique constraint failed"}, {"sqlstate 23505"}}},
	{NotNullViolationErr, [][]string{{"not-null constraint"}, {"sqlstate 23502"}, {"not null constraint failed"}}},
	{ForeignKeyViolationErr, [][]string{{"foreign key violation"}, {"foreign key constraint failed"}, {"sqlstate 23503"}}},
	{CheckConstraintViolationErr, [][]string{{"check constraint"}, {"sqlstate 23514"}}},
	{DataTruncatedErr, [][]string{{"string data right truncation"}, {"sqlstate 22001"}, {"data truncated"}}},
	{InvalidTypeCastErr, [][]string{{"datatype mismatch"}, {"sqlstate 42804"}}},
}

func (r messageRule) matches(msg string) bool {
	for _, group := range r.groups {
		all := true
		for _, sub := range group {
			if !strings.Contains(msg, sub) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// IsSqlError reports whether err is a recognised SQL error and its class.
// Every mysql error is recognised, unknown numbers as UnknownErr.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true, NoRowsErr
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return true, mysqlErrorNumbers[mysqlErr.Number]
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		if rule.matches(msg) {
			return true, rule.kind
		}
	}
	return false, UnknownErr
}

// IsDuplicateKey reports a unique or primary key violation.
func IsDuplicateKey(err error) bool {
	ok, kind := IsSqlError(err)
	return ok && kind == DuplicateKeyErr
}

// IsNoTable reports a statement against a missing table.
func IsNoTable(err error) bool {
	ok, kind := IsSqlError(err)
	return ok && kind == NoTableErr
}
