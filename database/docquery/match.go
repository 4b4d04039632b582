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

package docquery

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/types"
)

// Match evaluates a filter tree against one document. A predicate on a field
// the document lacks never matches, whatever the operator.
func Match(doc types.Record, filter database.Filter) bool {
	switch f := filter.(type) {
	case nil:
		return true
	case database.Predicate:
		return matchPredicate(doc, f)
	case *database.Predicate:
		return matchPredicate(doc, *f)
	case database.And:
		for _, child := range f.Filters {
			if !Match(doc, child) {
				return false
			}
		}
		return true
	case database.Or:
		if len(f.Filters) == 0 {
			return true
		}
		for _, child := range f.Filters {
			if Match(doc, child) {
				return true
			}
		}
		return false
	}
	return false
}

func matchPredicate(doc types.Record, p database.Predicate) bool {
	v, ok := types.ParseFieldPath(p.Field).Lookup(doc)
	if !ok {
		return false
	}
	switch p.Op {
	case types.OpEqual:
		return Equal(v, p.Value)
	case types.OpNotEqual:
		return !Equal(v, p.Value)
	case types.OpLessThan:
		c, ok := compareSameKind(v, p.Value)
		return ok && c < 0
	case types.OpLessThanOrEqual:
		c, ok := compareSameKind(v, p.Value)
		return ok && c <= 0
	case types.OpGreaterThan:
		c, ok := compareSameKind(v, p.Value)
		return ok && c > 0
	case types.OpGreaterThanOrEqual:
		c, ok := compareSameKind(v, p.Value)
		return ok && c >= 0
	case types.OpIn:
		return containsAny(types.ToSlice(p.Value), v)
	case types.OpNotIn:
		return !containsAny(types.ToSlice(p.Value), v)
	case types.OpArrayContains:
		return types.IsSequence(v) && containsAny(types.ToSlice(v), p.Value)
	case types.OpArrayContainsAny:
		if !types.IsSequence(v) {
			return false
		}
		for _, want := range types.ToSlice(p.Value) {
			if containsAny(types.ToSlice(v), want) {
				return true
			}
		}
		return false
	}
	return false
}

func containsAny(list []interface{}, v interface{}) bool {
	for _, item := range list {
		if Equal(item, v) {
			return true
		}
	}
	return false
}

// Equal compares two document values. Numbers compare by value whatever
// their Go type.
func Equal(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		return ok && ta.Equal(tb)
	}
	if types.IsSequence(a) && types.IsSequence(b) {
		sa, sb := types.ToSlice(a), types.ToSlice(b)
		if len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !Equal(sa[i], sb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two values. Values of different kinds order by kind:
// nil, bool, number, timestamp, string, then anything else.
func Compare(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return sign(ra - rb)
	}
	if c, ok := compareSameKind(a, b); ok {
		return c
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareSameKind(a, b interface{}) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case ba == bb:
			return 0, true
		case !ba:
			return -1, true
		}
		return 1, true
	}
	if a == nil && b == nil {
		return 0, true
	}
	return 0, false
}

func rank(v interface{}) int {
	if v == nil {
		return 0
	}
	if _, ok := v.(bool); ok {
		return 1
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	if _, ok := toTime(v); ok {
		return 3
	}
	if _, ok := v.(string); ok {
		return 4
	}
	return 5
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}
