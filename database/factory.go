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
	"os"
	"strconv"
	"time"
)

// BaseDatabaseFactory opens store clients and SQL managers from configuration.
type BaseDatabaseFactory struct {
	logger Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		logger: GetLogger(),
	}
}

// SetLogger sets the logger handed to the clients and managers it creates.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	if logger != nil {
		f.logger = logger
	}
}

// Open resolves the driver for cfg.ConnectionConfig.Type and opens a client.
func (f *BaseDatabaseFactory) Open(ctx context.Context, cfg *Config) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	f.overrideFromEnv(&cfg.ConnectionConfig)

	driver, err := lookupDriver(cfg.ConnectionConfig.Type)
	if err != nil {
		return nil, err
	}
	client, err := driver(ctx, cfg, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.ConnectionConfig.Type, err)
	}
	f.logger.Info("Document store opened", "type", cfg.ConnectionConfig.Type)
	return client, nil
}

// CreateFromConfig constructs and connects a bun manager for a SQL store.
func (f *BaseDatabaseFactory) CreateFromConfig(ctx context.Context, cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if !cfg.IsSQL() {
		return nil, fmt.Errorf("unsupported SQL database type: %s, supported types: %v",
			cfg.Type, []string{TypeMySQL, TypePostgres, TypeSQLite})
	}
	f.overrideFromEnv(cfg)

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)
	if err := manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return manager, nil
}

// overrideFromEnv overrides configuration values from environment variables.
func (f *BaseDatabaseFactory) overrideFromEnv(cfg *ConnectionConfig) {
	if t := os.Getenv("DB_TYPE"); t != "" {
		cfg.Type = t
	}

	// Firestore
	if project := os.Getenv("FIRESTORE_PROJECT_ID"); project != "" {
		cfg.ProjectID = project
	}
	if dbID := os.Getenv("FIRESTORE_DATABASE_ID"); dbID != "" {
		cfg.DatabaseID = dbID
	}
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" && cfg.CredentialsFile == "" {
		cfg.CredentialsFile = creds
	}
	if emulator := os.Getenv("FIRESTORE_EMULATOR_HOST"); emulator != "" {
		cfg.EmulatorHost = emulator
	}

	// Database connection info
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if username := os.Getenv("DB_USERNAME"); username != "" {
		cfg.Username = username
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.SSLMode = sslmode
	}

	// Connection pool config
	if maxIdle := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil {
			cfg.MaxIdleConns = val
		}
	}
	if maxOpen := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil {
			cfg.MaxOpenConns = val
		}
	}
	if maxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); maxLifetime != "" {
		if val, err := strconv.Atoi(maxLifetime); err == nil {
			cfg.ConnMaxLifetime = time.Duration(val) * time.Second
		}
	}

	// Reconnect config
	if enableReconnect := os.Getenv("DB_ENABLE_RECONNECT"); enableReconnect != "" {
		cfg.EnableReconnect = enableReconnect == "true"
	}
	if reconnectInterval := os.Getenv("DB_RECONNECT_INTERVAL"); reconnectInterval != "" {
		if val, err := strconv.Atoi(reconnectInterval); err == nil {
			cfg.ReconnectInterval = time.Duration(val) * time.Second
		}
	}

	// Logging config
	if enableQueryLog := os.Getenv("DB_ENABLE_QUERY_LOG"); enableQueryLog != "" {
		cfg.EnableQueryLog = enableQueryLog == "true"
	}
}
