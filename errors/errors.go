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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput is returned for malformed caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRelationResolution is returned when a batched relation lookup fails.
	ErrRelationResolution = errors.New("error on relations")

	// ErrInvalidPath is returned for malformed collection paths.
	ErrInvalidPath = errors.New("invalid collection path")
)

// NotFoundError reports a missing record in a collection.
type NotFoundError struct {
	Collection string
	Key        string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("no record found in %q", e.Collection)
	}
	return fmt.Sprintf("record %q not found in %q", e.Key, e.Collection)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError reports bad input, optionally scoped to a field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// RelationError wraps the failure of one relation declaration.
type RelationError struct {
	Label string
	Err   error
}

func (e *RelationError) Error() string {
	return fmt.Sprintf("error on relations: resolving %q: %v", e.Label, e.Err)
}

func (e *RelationError) Is(target error) bool {
	return target == ErrRelationResolution
}

func (e *RelationError) Unwrap() error { return e.Err }

// PathError reports a collection path that cannot be resolved.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("collection path %q: %s", e.Path, e.Reason)
}

func (e *PathError) Is(target error) bool {
	return target == ErrInvalidPath
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(collection, key string) error {
	return &NotFoundError{Collection: collection, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewRelationError creates a new RelationError
func NewRelationError(label string, err error) error {
	return &RelationError{Label: label, Err: err}
}

// NewPathError creates a new PathError
func NewPathError(path, reason string) error {
	return &PathError{Path: path, Reason: reason}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsValidationError(err error) bool { return errors.Is(err, ErrInvalidInput) }

func IsRelationError(err error) bool { return errors.Is(err, ErrRelationResolution) }

func IsPathError(err error) bool { return errors.Is(err, ErrInvalidPath) }

// IsInternal reports failures the caller cannot fix by changing its input.
func IsInternal(err error) bool {
	return err != nil && (IsRelationError(err) || IsPathError(err))
}

// The helpers below mirror the standard library so callers need one import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }

func Join(errs ...error) error { return errors.Join(errs...) }
