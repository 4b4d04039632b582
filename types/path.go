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

import "strings"

// FieldPath addresses a possibly nested field, e.g. "owner.address.city".
type FieldPath []string

// ParseFieldPath splits a dotted path. Empty segments are dropped.
func ParseFieldPath(path string) FieldPath {
	parts := strings.Split(path, ".")
	out := make(FieldPath, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (p FieldPath) String() string { return strings.Join(p, ".") }

// Lookup walks the path through nested maps. Missing segments, nil values
// and non-map intermediates yield (nil, false).
func (p FieldPath) Lookup(doc map[string]interface{}) (interface{}, bool) {
	if len(p) == 0 || doc == nil {
		return nil, false
	}
	var current interface{} = doc
	for _, seg := range p {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		v, found := m[seg]
		if !found || v == nil {
			return nil, false
		}
		current = v
	}
	return current, true
}

// Set writes v at the path, creating intermediate maps as needed.
func (p FieldPath) Set(doc map[string]interface{}, v interface{}) {
	if len(p) == 0 || doc == nil {
		return
	}
	current := doc
	for _, seg := range p[:len(p)-1] {
		next, ok := asMap(current[seg])
		if !ok {
			next = make(map[string]interface{})
			current[seg] = next
		}
		current = next
	}
	current[p[len(p)-1]] = v
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Record:
		return m, true
	case FilterExpression:
		return m, true
	}
	return nil, false
}
