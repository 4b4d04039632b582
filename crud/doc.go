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

// Package crud builds REST controllers over a repository. A controller is
// configured with create and update DTO types, optional lifecycle hooks and
// search keys, and mounts POST, GET, PATCH and DELETE routes on a chi router.
//
//	ctrl, err := crud.Factory[CreateUser, UpdateUser](crud.Config{
//		Repository: users,
//		SearchKeys: []string{"name", "email"},
//	})
//	r.Mount("/users", ctrl.Routes())
package crud
