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

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Reserved record fields.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// TimestampLayout is the ISO-8601 layout used for created_at/updated_at.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Record is one stored document: its identifier plus stored fields.
type Record map[string]interface{}

// Now returns the current UTC time formatted with TimestampLayout.
func Now() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// ID returns the record identifier or "" when absent.
func (r Record) ID() string {
	if r == nil {
		return ""
	}
	id, _ := r[FieldID].(string)
	return id
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// DeepClone copies the record and every nested map and slice.
func (r Record) DeepClone() Record {
	if r == nil {
		return nil
	}
	return deepCopy(map[string]interface{}(r)).(map[string]interface{})
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case Record:
		return Record(deepCopy(map[string]interface{}(t)).(map[string]interface{}))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

// WithID returns a copy of data carrying id. The stored id wins over any
// "id" field held in data.
func (r Record) WithID(id string) Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[FieldID] = id
	return out
}

// Without returns a copy without the named fields.
func (r Record) Without(fields ...string) Record {
	out := r.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Merge copies every field of src onto r.
func (r Record) Merge(src Record) Record {
	for k, v := range src {
		r[k] = v
	}
	return r
}

// Lookup resolves a dotted path against the record.
func (r Record) Lookup(path string) (interface{}, bool) {
	return ParseFieldPath(path).Lookup(r)
}

// Value implements driver.Valuer for Record. The JSON is returned as a
// string so text and json columns accept it on every driver.
func (r Record) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for Record.
func (r *Record) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*r = make(Record)
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("type assertion must be []byte or string")
	}
	return json.Unmarshal(raw, r)
}

// Records is a list of documents.
type Records []Record

// IDs returns the identifiers of every record, in order.
func (rs Records) IDs() []string {
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.ID())
	}
	return ids
}
