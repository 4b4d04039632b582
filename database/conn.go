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
	"context"
	"fmt"
	"sort"
	"sync"
)

// Driver opens a Client for a store type. Backend packages register their
// driver from init, the way database/sql drivers do.
type Driver func(ctx context.Context, cfg *Config, logger Logger) (Client, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available under the given store types. It panics
// when a type is registered twice.
func Register(driver Driver, storeTypes ...string) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("database: Register driver is nil")
	}
	for _, t := range storeTypes {
		if _, dup := drivers[t]; dup {
			panic("database: Register called twice for store type " + t)
		}
		drivers[t] = driver
	}
}

// Drivers returns the registered store types, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	out := make([]string, 0, len(drivers))
	for t := range drivers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func lookupDriver(storeType string) (Driver, error) {
	driversMu.RLock()
	d, ok := drivers[storeType]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s, supported types: %v (is the backend package imported?)", storeType, Drivers())
	}
	return d, nil
}

// Open applies environment overrides to cfg and opens the configured store.
func Open(ctx context.Context, cfg *Config) (Client, error) {
	return NewDatabaseFactory().Open(ctx, cfg)
}
