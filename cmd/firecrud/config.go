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

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/tomoncle/firecrud/database"
)

const envPrefix = "FIRECRUD"

// Config is the server configuration, read from firecrud.yml and
// FIRECRUD_* environment variables.
type Config struct {
	Address   string          `mapstructure:"address"`
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
	Prefix    string          `mapstructure:"collection_prefix"`
	Database  database.Config `mapstructure:"database"`
	Resources []Resource      `mapstructure:"resources"`
}

// Resource exposes one collection under /<name>.
type Resource struct {
	Name       string   `mapstructure:"name"`
	Collection string   `mapstructure:"collection"`
	OrderField string   `mapstructure:"order_field"`
	SearchKeys []string `mapstructure:"search_keys"`
}

func newViper() *viper.Viper {
	vi := viper.New()
	vi.SetDefault("address", "0.0.0.0:8080")
	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "text")
	vi.SetDefault("collection_prefix", "")

	vi.SetEnvPrefix(envPrefix)
	vi.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vi.AutomaticEnv()
	return vi
}

// loadConfig reads the file at path on top of the defaults. An empty path
// looks for firecrud.yml in ./config and the working directory.
func loadConfig(path string) (*Config, error) {
	vi := newViper()
	if path != "" {
		vi.SetConfigFile(path)
	} else {
		vi.SetConfigName("firecrud")
		vi.AddConfigPath("./config")
		vi.AddConfigPath(".")
	}
	if err := vi.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	conf := &Config{Database: *database.DefaultConfig()}
	if err := vi.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	for i := range conf.Resources {
		res := &conf.Resources[i]
		if res.Name == "" {
			return nil, fmt.Errorf("resource %d has no name", i)
		}
		if res.Collection == "" {
			res.Collection = res.Name
		}
	}
	return conf, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
