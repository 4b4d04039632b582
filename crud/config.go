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
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/repository"
	"github.com/tomoncle/firecrud/types"
)

// Hooks run before the repository call of each route. A hook may rewrite its
// input or abort the request by returning an error, which is mapped to a
// status code like repository errors.
type Hooks struct {
	BeforeCreate  func(r *http.Request, data types.Record) (types.Record, error)
	BeforeUpdate  func(r *http.Request, id string, data types.Record) (types.Record, error)
	BeforeDelete  func(r *http.Request, ids []string) ([]string, error)
	BeforeFindAll func(r *http.Request, opts repository.FindOptions) (repository.FindOptions, error)
	BeforeFindOne func(r *http.Request, opts repository.FindOptions) (repository.FindOptions, error)
}

// Config configures a controller.
type Config struct {
	Repository repository.Repository

	// SearchKeys are the fields matched by the "src" query parameter.
	SearchKeys []string

	// Relations and References hydrate every record returned by GET routes.
	Relations  []repository.Relation
	References []repository.Reference

	Hooks

	// Validator defaults to one using json field names in messages.
	Validator *validator.Validate
	Logger    database.Logger
}

// Response is the JSON envelope of every non-list route.
type Response struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
