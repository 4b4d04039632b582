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

package types

import "reflect"

// Condition pairs an operator with its operand.
type Condition struct {
	Op      Operator
	Operand interface{}
}

func LessThan(v interface{}) Condition           { return Condition{OpLessThan, v} }
func LessThanOrEqual(v interface{}) Condition    { return Condition{OpLessThanOrEqual, v} }
func GreaterThan(v interface{}) Condition        { return Condition{OpGreaterThan, v} }
func GreaterThanOrEqual(v interface{}) Condition { return Condition{OpGreaterThanOrEqual, v} }
func NotEqual(v interface{}) Condition           { return Condition{OpNotEqual, v} }
func ArrayContains(v interface{}) Condition      { return Condition{OpArrayContains, v} }

func In(values ...interface{}) Condition    { return Condition{OpIn, values} }
func NotIn(values ...interface{}) Condition { return Condition{OpNotIn, values} }

func ArrayContainsAny(values ...interface{}) Condition {
	return Condition{OpArrayContainsAny, values}
}

// FilterExpression maps a field name to a literal (equality), a Condition, or
// a single-entry map keyed by an operator keyword, e.g. {"$in": [...]}.
// nil and "" values mean no filter for that field.
type FilterExpression map[string]interface{}

// QueryOptions is the declarative query shape accepted by repositories.
type QueryOptions struct {
	// Where entries must all hold.
	Where FilterExpression
	// OrWhere entries are alternatives; any one holding suffices.
	OrWhere []FilterExpression
	// Select projects the returned fields.
	Select []string
	// Include names model relations to load; relational provider only.
	Include []string
}

// IsEmptyValue reports whether v means "no filter".
func IsEmptyValue(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// IsSequence reports whether v is a slice or array other than []byte.
func IsSequence(v interface{}) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// ToSlice flattens a slice or array into []interface{}.
func ToSlice(v interface{}) []interface{} {
	if s, ok := v.([]interface{}); ok {
		return s
	}
	if !IsSequence(v) {
		return nil
	}
	rv := reflect.ValueOf(v)
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
