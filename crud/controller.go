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
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/errors"
	"github.com/tomoncle/firecrud/repository"
	"github.com/tomoncle/firecrud/types"
)

const (
	msgCreated         = "Item created successfully"
	msgUpdated         = "Item updated successfully"
	msgNotFound        = "Item not found"
	msgNotFoundUpdate  = "Item not found for update"
	msgNoIDs           = "No ids found"
	msgDeletedTemplate = "%d items deleted successfully"
	msgInvalidBody     = "invalid request body"
)

// Controller serves CRUD routes for one repository. C and U are the create
// and update DTOs; request bodies are decoded into them and validated, and
// only the fields they declare reach the repository.
type Controller[C any, U any] struct {
	repo     repository.Repository
	cfg      Config
	validate *validator.Validate
	logger   database.Logger
}

// Factory returns a controller for cfg.Repository.
func Factory[C any, U any](cfg Config) (*Controller[C, U], error) {
	if cfg.Repository == nil {
		return nil, errors.NewValidationError("repository", "repository is required")
	}
	v := cfg.Validator
	if v == nil {
		v = NewValidator()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = database.GetLogger()
	}
	return &Controller[C, U]{repo: cfg.Repository, cfg: cfg, validate: v, logger: logger}, nil
}

// NewValidator returns a validator reporting json field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// Routes returns a router serving the controller, ready to be mounted.
func (c *Controller[C, U]) Routes() chi.Router {
	r := chi.NewRouter()
	c.Register(r)
	return r
}

// Register adds the controller routes to r.
func (c *Controller[C, U]) Register(r chi.Router) {
	r.Post("/", c.Create)
	r.Get("/", c.FindAll)
	r.Delete("/", c.Delete)
	r.Get("/{id}", c.FindOne)
	r.Patch("/{id}", c.Update)
}

func (c *Controller[C, U]) Create(w http.ResponseWriter, r *http.Request) {
	data, err := decodeDTO[C](r, c.validate)
	if err != nil {
		c.fail(w, r, err, "")
		return
	}
	if c.cfg.BeforeCreate != nil {
		if data, err = c.cfg.BeforeCreate(r, data); err != nil {
			c.fail(w, r, err, "")
			return
		}
	}
	created, err := c.repo.Create(r.Context(), data)
	if err != nil {
		c.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, Response{Message: msgCreated, Data: created})
}

func (c *Controller[C, U]) FindAll(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := ParsePage(query)
	if err != nil {
		c.fail(w, r, err, "")
		return
	}
	opts := c.findOptions()
	opts.Where = ParseWhere(query)
	opts.OrWhere = SearchWhere(query.Get(ParamSearch), c.cfg.SearchKeys)

	if c.cfg.BeforeFindAll != nil {
		if opts, err = c.cfg.BeforeFindAll(r, opts); err != nil {
			c.fail(w, r, err, "")
			return
		}
	}
	result, err := c.repo.Paginate(r.Context(), opts, page)
	if err != nil {
		c.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *Controller[C, U]) FindOne(w http.ResponseWriter, r *http.Request) {
	opts := c.findOptions()
	opts.Where = ParseWhere(r.URL.Query())
	opts.Where[types.FieldID] = chi.URLParam(r, "id")

	var err error
	if c.cfg.BeforeFindOne != nil {
		if opts, err = c.cfg.BeforeFindOne(r, opts); err != nil {
			c.fail(w, r, err, msgNotFound)
			return
		}
	}
	data, err := c.repo.FindOne(r.Context(), opts)
	if err != nil {
		c.fail(w, r, err, msgNotFound)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: data})
}

func (c *Controller[C, U]) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := decodeDTO[U](r, c.validate)
	if err != nil {
		c.fail(w, r, err, "")
		return
	}
	if c.cfg.BeforeUpdate != nil {
		if data, err = c.cfg.BeforeUpdate(r, id, data); err != nil {
			c.fail(w, r, err, msgNotFoundUpdate)
			return
		}
	}
	updated, err := c.repo.Update(r.Context(), id, data)
	if err != nil {
		c.fail(w, r, err, msgNotFoundUpdate)
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: msgUpdated, Data: updated})
}

func (c *Controller[C, U]) Delete(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range r.URL.Query()[types.FieldID] {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		writeJSON(w, http.StatusBadRequest, Response{Message: msgNoIDs})
		return
	}

	var err error
	if c.cfg.BeforeDelete != nil {
		if ids, err = c.cfg.BeforeDelete(r, ids); err != nil {
			c.fail(w, r, err, "")
			return
		}
	}
	deleted, err := c.repo.Delete(r.Context(), ids)
	if err != nil {
		c.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: fmt.Sprintf(msgDeletedTemplate, deleted)})
}

func (c *Controller[C, U]) findOptions() repository.FindOptions {
	return repository.FindOptions{
		Relations:  c.cfg.Relations,
		References: c.cfg.References,
	}
}

// fail maps err to a status code. notFound replaces the message of NotFound
// errors when set.
func (c *Controller[C, U]) fail(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.IsNotFound(err):
		msg := notFound
		if msg == "" {
			msg = err.Error()
		}
		writeJSON(w, http.StatusNotFound, Response{Message: msg})
	case errors.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, Response{Message: err.Error()})
	default:
		c.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, Response{Message: http.StatusText(http.StatusInternalServerError)})
	}
}

// decodeDTO decodes the JSON body into T, validates it and returns the body
// restricted to the fields T declares.
func decodeDTO[T any](r *http.Request, v *validator.Validate) (types.Record, error) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		return nil, errors.NewValidationError("", msgInvalidBody)
	}

	var dto T
	var meta mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     &dto,
		Metadata:   &meta,
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(body); err != nil {
		return nil, errors.NewValidationError("", err.Error())
	}
	if err := validateDTO(v, dto); err != nil {
		return nil, err
	}

	for _, key := range meta.Unused {
		if !strings.ContainsAny(key, "[]") {
			deletePath(body, types.ParseFieldPath(key))
		}
	}
	return types.Record(body), nil
}

func validateDTO(v *validator.Validate, dto interface{}) error {
	rv := reflect.Indirect(reflect.ValueOf(dto))
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}
	err := v.Struct(dto)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed on the '%s=%s' rule", fe.Tag(), fe.Param())
		}
		return errors.NewValidationError(fe.Field(), msg)
	}
	return err
}

func deletePath(doc map[string]interface{}, path types.FieldPath) {
	if len(path) == 0 {
		return
	}
	parent := doc
	if len(path) > 1 {
		v, ok := path[:len(path)-1].Lookup(doc)
		if !ok {
			return
		}
		if parent, ok = v.(map[string]interface{}); !ok {
			return
		}
	}
	delete(parent, path[len(path)-1])
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}
