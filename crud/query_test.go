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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/types"
)

func TestParseWhere(t *testing.T) {
	values, err := url.ParseQuery("name=ana&role=a&role=b&age[$greaterThan]=3&tags[$arrayContainsAny]=x,y&id[$notIn]=1&id[$notIn]=2&page=2&limit=5&src=q")
	require.NoError(t, err)

	where := ParseWhere(values)
	assert.Equal(t, types.FilterExpression{
		"name": "ana",
		"role": map[string]interface{}{"$in": []interface{}{"a", "b"}},
		"age":  map[string]interface{}{"$greaterThan": "3"},
		"tags": map[string]interface{}{"$arrayContainsAny": []interface{}{"x", "y"}},
		"id":   map[string]interface{}{"$notIn": []interface{}{"1", "2"}},
	}, where)
}

func TestParseWhereKeepsConflictingOperators(t *testing.T) {
	values, err := url.ParseQuery("age[$lessThan]=9&age[$greaterThan]=1")
	require.NoError(t, err)
	where := ParseWhere(values)
	assert.Len(t, where["age"], 2, "two operators on one field are left for the translator to reject")
}

func TestParsePage(t *testing.T) {
	req, err := ParsePage(url.Values{"page": {"3"}, "limit": {"20"}})
	require.NoError(t, err)
	assert.Equal(t, types.PageRequest{Page: 3, Limit: 20}, req)

	req, err = ParsePage(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 1, req.GetPage())
	assert.Equal(t, 10, req.GetLimit())

	_, err = ParsePage(url.Values{"limit": {"ten"}})
	assert.True(t, errors.IsValidationError(err))
}

func TestSearchWhere(t *testing.T) {
	assert.Nil(t, SearchWhere("", []string{"name"}))
	assert.Nil(t, SearchWhere("ana", nil))
	assert.Equal(t, []types.FilterExpression{{"name": "ana"}, {"email": "ana"}}, SearchWhere("ana", []string{"name", "email"}))
}
