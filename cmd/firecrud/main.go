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
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomoncle/firecrud/database"
	_ "github.com/tomoncle/firecrud/database/firestoredb"
	_ "github.com/tomoncle/firecrud/database/memory"
	"github.com/tomoncle/firecrud/database/sqldoc"
	"github.com/tomoncle/firecrud/utils"
)

// set using -ldflags
var version string

var cpath string

func main() {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:           "firecrud",
		Short:         "REST CRUD endpoints over document collections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cpath, "config", "", "path to the config file")

	rootCmd.AddCommand(servCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fatal(err)
	}
}

// setup loads the config and applies its logging settings.
func setup() (*Config, error) {
	conf, err := loadConfig(cpath)
	if err != nil {
		return nil, err
	}
	utils.ConfigureConsoleLogFormat(conf.LogFormat)
	utils.ConfigureLogLevel(conf.LogLevel)
	return conf, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the document tables of a SQL store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := setup()
			if err != nil {
				return err
			}
			return migrate(cmd.Context(), conf)
		},
	}
}

func migrate(ctx context.Context, conf *Config) error {
	if !conf.Database.ConnectionConfig.IsSQL() {
		return fmt.Errorf("store type %s has no migrations", conf.Database.ConnectionConfig.Type)
	}
	manager, err := database.NewDatabaseFactory().CreateFromConfig(ctx, &conf.Database.ConnectionConfig)
	if err != nil {
		return err
	}
	defer manager.Disconnect() //nolint:errcheck
	if err := sqldoc.Migrate(ctx, manager, database.GetLogger()); err != nil {
		return err
	}
	database.GetLogger().Info("Migrations applied", "type", conf.Database.ConnectionConfig.Type)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildVersion())
		},
	}
}

func buildVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "not-set"
}
