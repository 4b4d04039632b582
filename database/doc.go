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

// Package database defines the document store boundary (Client, CollectionRef,
// DocumentRef, Query, BulkWriter and the Filter tree), collection path
// resolution and the driver registry used to open stores from configuration.
// It also carries the bun connection manager, query hooks, migrations and SQL
// error classification shared by the SQL backed stores.
package database
