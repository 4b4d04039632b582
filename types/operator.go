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

// Operator is a field comparison understood by every store backend.
type Operator int

const (
	OpEqual Operator = iota
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpIn
	OpNotIn
	OpNotEqual
	OpArrayContains
	OpArrayContainsAny
)

var _ BaseEnum = OpEqual

type operatorInfo struct {
	keyword string
	native  string
	desc    string
	// operand must be a sequence
	listOperand bool
}

var operatorTable = [...]operatorInfo{
	OpEqual:              {"$equal", "==", "equal to", false},
	OpLessThan:           {"$lessThan", "<", "less than", false},
	OpLessThanOrEqual:    {"$lessThanOrEqual", "<=", "less than or equal to", false},
	OpGreaterThan:        {"$greaterThan", ">", "greater than", false},
	OpGreaterThanOrEqual: {"$greaterThanOrEqual", ">=", "greater than or equal to", false},
	OpIn:                 {"$in", "in", "one of", true},
	OpNotIn:              {"$notIn", "not-in", "none of", true},
	OpNotEqual:           {"$not", "!=", "not equal to", false},
	OpArrayContains:      {"$arrayContains", "array-contains", "array containing", false},
	OpArrayContainsAny:   {"$arrayContainsAny", "array-contains-any", "array containing any of", true},
}

var keywordIndex = func() map[string]Operator {
	m := make(map[string]Operator, len(operatorTable))
	for i, info := range operatorTable {
		m[info.keyword] = Operator(i)
	}
	return m
}()

// ParseOperator resolves a filter keyword such as "$lessThan".
func ParseOperator(keyword string) (Operator, bool) {
	op, ok := keywordIndex[strings.TrimSpace(keyword)]
	return op, ok
}

// IsOperatorKeyword reports whether s looks like an operator keyword.
func IsOperatorKeyword(s string) bool {
	return strings.HasPrefix(s, "$")
}

func (o Operator) IsValid() bool { return o >= OpEqual && int(o) < len(operatorTable) }

func (o Operator) Number() int {
	if !o.IsValid() {
		return IllegalValue
	}
	return int(o)
}

// String returns the native comparator, e.g. "<=" or "array-contains".
func (o Operator) String() string {
	if !o.IsValid() {
		return IllegalName
	}
	return operatorTable[o].native
}

func (o Operator) Desc() string {
	if !o.IsValid() {
		return IllegalDesc
	}
	return operatorTable[o].desc
}

// Name returns the filter keyword, e.g. "$lessThanOrEqual".
func (o Operator) Name() string {
	if !o.IsValid() {
		return IllegalName
	}
	return operatorTable[o].keyword
}

// ListOperand reports whether the operator expects a sequence operand.
func (o Operator) ListOperand() bool {
	return o.IsValid() && operatorTable[o].listOperand
}
