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

package crud

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

// Reserved query parameters.
const (
	ParamPage   = "page"
	ParamLimit  = "limit"
	ParamSearch = "src"
)

// operatorParam matches "field[$keyword]".
var operatorParam = regexp.MustCompile(`^([^\[\]]+)\[(\$[A-Za-z]+)\]$`)

// ParseWhere turns query parameters into a filter expression. "field=v" is an
// equality, repeated values become $in. "field[$op]=v" applies the operator;
// list operators take repeated values or one comma separated value. Values
// stay strings. Reserved parameters are skipped.
func ParseWhere(values url.Values) types.FilterExpression {
	where := make(types.FilterExpression)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		vals := values[key]
		if len(vals) == 0 || isReserved(key) {
			continue
		}
		m := operatorParam.FindStringSubmatch(key)
		if m == nil {
			if len(vals) == 1 {
				where[key] = vals[0]
			} else {
				where[key] = map[string]interface{}{"$in": stringsToSlice(vals)}
			}
			continue
		}
		field, keyword := m[1], m[2]
		ops, ok := where[field].(map[string]interface{})
		if !ok {
			ops = make(map[string]interface{})
			where[field] = ops
		}
		ops[keyword] = operand(keyword, vals)
	}
	return where
}

func operand(keyword string, vals []string) interface{} {
	op, ok := types.ParseOperator(keyword)
	if !ok || !op.ListOperand() {
		return vals[0]
	}
	if len(vals) == 1 {
		vals = strings.Split(vals[0], ",")
	}
	return stringsToSlice(vals)
}

func stringsToSlice(vals []string) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func isReserved(key string) bool {
	return key == ParamPage || key == ParamLimit || key == ParamSearch
}

// ParsePage reads page and limit. Absent values fall back to the defaults;
// non numeric values are rejected.
func ParsePage(values url.Values) (types.PageRequest, error) {
	var req types.PageRequest
	var err error
	if req.Page, err = intParam(values, ParamPage); err != nil {
		return req, err
	}
	if req.Limit, err = intParam(values, ParamLimit); err != nil {
		return req, err
	}
	return req, nil
}

func intParam(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError(key, "must be an integer")
	}
	return n, nil
}

// SearchWhere returns one OR entry per search key matching src.
func SearchWhere(src string, keys []string) []types.FilterExpression {
	if src == "" || len(keys) == 0 {
		return nil
	}
	out := make([]types.FilterExpression, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.FilterExpression{k: src})
	}
	return out
}
