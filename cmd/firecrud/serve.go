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
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/tomoncle/firecrud/crud"
	"github.com/tomoncle/firecrud/database"
	"github.com/tomoncle/firecrud/repository"
	"github.com/tomoncle/firecrud/types"
)

func servCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"serv"},
		Short:   "Serve the configured resources over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := setup()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), conf)
		},
	}
}

func serve(ctx context.Context, conf *Config) error {
	logger := database.GetLogger()
	client, err := database.Open(ctx, &conf.Database)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	routes, err := newRouter(client, conf, logger)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              conf.Address,
		Handler:           routes,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 10 * time.Second,
	}

	l, err := net.Listen("tcp", conf.Address)
	if err != nil {
		return err
	}
	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Warn("Shutdown failed", "error", err)
		}
		close(idleConnsClosed)
	}()

	logger.Info("firecrud started", "version", buildVersion(), "address", l.Addr().String(),
		"store", conf.Database.ConnectionConfig.Type, "resources", len(conf.Resources))
	if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-idleConnsClosed
	logger.Info("Shutdown complete")
	return nil
}

// newRouter mounts one CRUD controller per configured resource.
func newRouter(client database.Client, conf *Config, logger database.Logger) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]interface{}{"status": "ok", "store": conf.Database.ConnectionConfig.Type}
		code := http.StatusOK
		if m, ok := client.(interface {
			Manager() database.AbstractDatabaseManager
		}); ok {
			hs := m.Manager().HealthCheck(req.Context())
			status["database"] = hs
			status["pool"] = m.Manager().GetStats()
			if !hs.Healthy {
				status["status"] = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status) //nolint:errcheck
	})

	for _, res := range conf.Resources {
		repo, err := repository.NewRepository(client, repository.Config{
			Collection:       res.Collection,
			CollectionPrefix: conf.Prefix,
			OrderField:       res.OrderField,
			Logger:           logger,
		})
		if err != nil {
			return nil, err
		}
		ctrl, err := crud.Factory[types.Record, types.Record](crud.Config{
			Repository: repo,
			SearchKeys: res.SearchKeys,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		r.Mount("/"+res.Name, ctrl.Routes())
		logger.Debug("Resource mounted", "route", "/"+res.Name, "collection", repo.Collection().Path())
	}
	return r, nil
}
