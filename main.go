// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quota/modules/apikey"
	"quota/modules/appconfig"
	"quota/modules/clock"
	dbpostgres "quota/modules/db/postgres"
	dbredis "quota/modules/db/redis"
	"quota/modules/middleware"
	httpquota "quota/modules/middleware/quota"
	"quota/modules/quota"
	"quota/modules/server"
	memorystore "quota/modules/store/memory"
	postgresstore "quota/modules/store/postgres"
	redisstore "quota/modules/store/redis"
	"quota/modules/telemetry"
)

func main() {
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	// cancel the context when these signals occur
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer cancel()

	// manual dependency injection; no need to over-engineer with DI frameworks
	slog.SetLogLoggerLevel(slog.LevelDebug)

	clk := clock.RealClockProvider()

	// --- application config ----
	appConfig, err := appconfig.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// --- telemetry ---
	otelShutdown, err := telemetry.Init(ctx, appConfig.Otel)
	if err != nil {
		slog.ErrorContext(ctx, "telemetry not properly configured", slog.Any("error", err))
		exitCode = 1
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "telemetry shutdown error", slog.Any("error", err))
		}
	}()

	// --- counter store ---
	store, cleanup := buildStore(ctx, appConfig, clk)
	defer cleanup()

	// --- quota engines, one per limit profile ---
	engines, err := buildEngines(store, clk, appConfig.Quota)
	if err != nil {
		slog.ErrorContext(ctx, "bad quota config", slog.Any("error", err))
		exitCode = 1
		return
	}
	defaultProfile := appConfig.Quota.Profile
	if defaultProfile == "" {
		defaultProfile = "default"
	}

	// --- api key identity (optional) ---
	var hasher *apikey.Hasher
	if appConfig.APIKeySecret != "" {
		hasher, err = apikey.NewHasher([]byte(appConfig.APIKeySecret))
		if err != nil {
			slog.ErrorContext(ctx, "api key hasher setup error", slog.Any("error", err))
			exitCode = 1
			return
		}
	}

	metrics, err := telemetry.NewQuotaMetrics("quota-api")
	if err != nil {
		slog.WarnContext(ctx, "failed to initialize quota metrics, continuing without metrics", slog.Any("error", err))
		metrics = nil
	}
	httpMetrics, err := telemetry.NewHTTPMetrics("quota-api")
	if err != nil {
		slog.WarnContext(ctx, "failed to initialize http metrics, continuing without metrics", slog.Any("error", err))
		httpMetrics = nil
	}

	// --- application layer ---
	quotaSvc, err := httpquota.NewService(
		appConfig.HTTP,
		engines,
		defaultProfile,
		hasher,
		appConfig.APIKeyProfiles,
		metrics,
	)
	if err != nil {
		slog.ErrorContext(ctx, "quota service setup error", slog.Any("error", err))
		exitCode = 1
		return
	}

	srv, err := server.New(
		"0.0.0.0", 8080,
		server.WithWriteTimeout(10*time.Second),
		server.WithGlobalMiddlewares(
			middleware.Telemetry(httpMetrics),
			middleware.Recovery(),
		),
		server.WithServices(quotaSvc),
	)
	if err != nil {
		slog.ErrorContext(ctx, "init server error", slog.Any("error", err))
		exitCode = 1
		return
	}

	if err := srv.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "running server error", slog.Any("error", err))
		exitCode = 1
		return
	}
}

// buildStore picks the configured backend. Redis and Postgres fall back
// to the in-memory store with a warning when unreachable at boot; the
// service never refuses to start over an unreachable quota store.
func buildStore(ctx context.Context, cfg *appconfig.Config, clk clock.Clock) (quota.CounterStore, func()) {
	switch cfg.Store {
	case "redis":
		client, err := dbredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.WarnContext(ctx, "redis unavailable, falling back to in-memory quota store",
				slog.Any("error", err))
			return newMemoryStore(ctx, clk), func() {}
		}
		return redisstore.New(client, "quota"), client.Close

	case "postgres":
		pool, err := dbpostgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.WarnContext(ctx, "postgres unavailable, falling back to in-memory quota store",
				slog.Any("error", err))
			return newMemoryStore(ctx, clk), func() {}
		}
		st := postgresstore.New(pool)
		if err := st.EnsureSchema(ctx); err != nil {
			slog.WarnContext(ctx, "postgres schema setup failed, falling back to in-memory quota store",
				slog.Any("error", err))
			pool.Close()
			return newMemoryStore(ctx, clk), func() {}
		}
		return st, pool.Close

	default:
		slog.InfoContext(ctx, "using in-memory quota store")
		return newMemoryStore(ctx, clk), func() {}
	}
}

// newMemoryStore starts the janitor alongside the store; without it the
// bucket map grows with every distinct client key ever seen.
func newMemoryStore(ctx context.Context, clk clock.Clock) *memorystore.Store {
	st := memorystore.New()
	go memorystore.Janitor(ctx, st, clk, time.Hour, 24*time.Hour)
	return st
}

func buildEngines(store quota.CounterStore, clk clock.Clock, cfg quota.Config) (map[string]*quota.Engine, error) {
	engines := make(map[string]*quota.Engine, 2)
	for _, profile := range []string{"default", "conservative"} {
		c := cfg
		c.Profile = profile
		limits, err := c.Build()
		if err != nil {
			return nil, err
		}
		engines[profile] = quota.NewEngine(store, clk, limits)
	}
	return engines, nil
}
