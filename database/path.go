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

package database

import (
	"strings"

	"github.com/tomoncle/firecrud/errors"
)

// SplitPath splits a slash separated store path. Leading and trailing slashes
// are ignored; empty inner segments are rejected.
func SplitPath(path string) ([]string, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return nil, errors.NewPathError(path, "must not be empty")
	}
	segments := strings.Split(trimmed, "/")
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return nil, errors.NewPathError(path, "contains an empty segment")
		}
	}
	return segments, nil
}

// JoinPath joins segments with "/", skipping empty ones.
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.Trim(s, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// ResolvePath walks a path whose segments alternate collection and document
// ids. An odd number of segments yields a collection, an even number a
// document; exactly one of the returned references is non-nil.
func ResolvePath(client Client, path string) (CollectionRef, DocumentRef, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return nil, nil, err
	}
	coll := client.Collection(segments[0])
	if coll == nil {
		return nil, nil, errors.NewPathError(path, "cannot resolve root collection")
	}
	var doc DocumentRef
	for i, seg := range segments[1:] {
		if i%2 == 0 {
			doc = coll.Doc(seg)
			coll = nil
		} else {
			coll = doc.Collection(seg)
			doc = nil
		}
	}
	return coll, doc, nil
}

// ResolveCollection resolves a path that must name a collection.
func ResolveCollection(client Client, path string) (CollectionRef, error) {
	coll, _, err := ResolvePath(client, path)
	if err != nil {
		return nil, err
	}
	if coll == nil {
		return nil, errors.NewPathError(path, "names a document, not a collection")
	}
	return coll, nil
}

// ResolveDocument resolves a path that must name a document.
func ResolveDocument(client Client, path string) (DocumentRef, error) {
	_, doc, err := ResolvePath(client, path)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.NewPathError(path, "names a collection, not a document")
	}
	return doc, nil
}
