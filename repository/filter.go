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
	"fmt"
	"sort"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

// TranslateFilter emits one predicate per field of expr, in field name order.
// nil and "" values emit nothing.
func TranslateFilter(expr types.FilterExpression) ([]database.Predicate, error) {
	fields := make([]string, 0, len(expr))
	for f := range expr {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]database.Predicate, 0, len(fields))
	for _, field := range fields {
		p, ok, err := translateField(field, expr[field])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func translateField(field string, value interface{}) (database.Predicate, bool, error) {
	if types.IsEmptyValue(value) {
		return database.Predicate{}, false, nil
	}
	switch v := value.(type) {
	case types.Condition:
		return predicate(field, v.Op, v.Operand)
	case *types.Condition:
		return predicate(field, v.Op, v.Operand)
	}
	if m, ok := operatorMap(value); ok {
		if len(m) != 1 {
			return database.Predicate{}, false, errors.NewValidationError(field, "at most one operator per field")
		}
		for keyword, operand := range m {
			op, known := types.ParseOperator(keyword)
			if !known {
				return database.Predicate{}, false, errors.NewValidationError(field, fmt.Sprintf("unknown operator %q", keyword))
			}
			return predicate(field, op, operand)
		}
	}
	return database.Predicate{Field: field, Op: types.OpEqual, Value: value}, true, nil
}

func predicate(field string, op types.Operator, operand interface{}) (database.Predicate, bool, error) {
	if !op.IsValid() {
		return database.Predicate{}, false, errors.NewValidationError(field, "unknown operator")
	}
	if op.ListOperand() {
		if !types.IsSequence(operand) {
			return database.Predicate{}, false, errors.NewValidationError(field, op.Name()+" expects a list")
		}
		operand = types.ToSlice(operand)
	}
	return database.Predicate{Field: field, Op: op, Value: operand}, true, nil
}

// operatorMap returns value as a map when every key is an operator keyword.
func operatorMap(value interface{}) (map[string]interface{}, bool) {
	var m map[string]interface{}
	switch v := value.(type) {
	case map[string]interface{}:
		m = v
	case types.FilterExpression:
		m = v
	case types.Record:
		m = v
	case map[string]string:
		m = make(map[string]interface{}, len(v))
		for k, s := range v {
			m[k] = s
		}
	default:
		return nil, false
	}
	if len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !types.IsOperatorKeyword(k) {
			return nil, false
		}
	}
	return m, true
}

// TranslateOrWhere keeps the first predicate of every entry. Entries that
// emit no predicate are dropped.
func TranslateOrWhere(entries []types.FilterExpression) ([]database.Filter, error) {
	out := make([]database.Filter, 0, len(entries))
	for _, entry := range entries {
		preds, err := TranslateFilter(entry)
		if err != nil {
			return nil, err
		}
		if len(preds) > 0 {
			out = append(out, preds[0])
		}
	}
	return out, nil
}
