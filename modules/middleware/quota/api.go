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

// Package quota is the HTTP face of the quota engine: the check /
// record / status endpoints plus a guard middleware that gates an
// arbitrary protected handler behind the full check → act → record
// flow.
package quota

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"quota/modules/apikey"
	"quota/modules/clientid"
	qt "quota/modules/quota"
	"quota/modules/telemetry"

	"golang.org/x/time/rate"
)

type Service struct {
	engines        map[string]*qt.Engine
	defaultProfile string

	// API-key identity: hashed key -> profile name. Requests without a
	// valid key stay on the default profile.
	hasher      *apikey.Hasher
	keyProfiles map[string]string

	cfg     Config
	metrics *telemetry.QuotaMetrics
	brake   *rate.Limiter
}

// NewService builds the quota HTTP service. engines must contain
// defaultProfile; hasher and keyProfiles may be nil when API-key
// identity is not configured.
func NewService(
	cfg Config,
	engines map[string]*qt.Engine,
	defaultProfile string,
	hasher *apikey.Hasher,
	keyProfiles map[string]string,
	metrics *telemetry.QuotaMetrics,
) (*Service, error) {
	if _, ok := engines[defaultProfile]; !ok {
		return nil, errors.New("quota service: no engine for default profile")
	}
	s := &Service{
		engines:        engines,
		defaultProfile: defaultProfile,
		hasher:         hasher,
		keyProfiles:    keyProfiles,
		cfg:            cfg,
		metrics:        metrics,
	}
	if cfg.BurstBrake && cfg.BurstPerSecond > 0 {
		s.brake = rate.NewLimiter(rate.Limit(cfg.BurstPerSecond), max(cfg.Burst, 1))
	}
	return s, nil
}

// Register implements server.RegistrableService.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/quota/check", s.handleCheck)
	mux.HandleFunc("POST /v1/quota/record", s.handleRecord)
	mux.HandleFunc("GET /v1/quota/status", s.handleStatus)
}

// Middlewares implements server.RegistrableService. The quota endpoints
// need no global middlewares of their own.
func (s *Service) Middlewares() []func(http.Handler) http.Handler {
	return nil
}

// engineFor picks the engine by API-key profile, falling back to the
// default profile for anonymous callers and unknown keys.
func (s *Service) engineFor(r *http.Request) *qt.Engine {
	if s.hasher == nil || len(s.keyProfiles) == 0 {
		return s.engines[s.defaultProfile]
	}
	raw := r.Header.Get(s.cfg.APIKeyHeader)
	if raw == "" {
		return s.engines[s.defaultProfile]
	}
	profile, ok := s.keyProfiles[s.hasher.Hash(raw)]
	if !ok {
		return s.engines[s.defaultProfile]
	}
	if e, ok := s.engines[profile]; ok {
		return e
	}
	slog.Warn("api key maps to unconfigured profile, using default",
		slog.String("profile", profile),
	)
	return s.engines[s.defaultProfile]
}

func (s *Service) handleCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	d := s.engineFor(r).Check(r.Context(), clientid.FromHTTP(r.Header))
	s.metrics.RecordDecision(r.Context(), d.Allowed, string(d.LimitType), d.Err != "",
		float64(time.Since(start).Microseconds())/1000.0)

	writeJSON(w, http.StatusOK, fromDecision(d))
}

func (s *Service) handleRecord(w http.ResponseWriter, r *http.Request) {
	res := s.engineFor(r).Record(r.Context(), clientid.FromHTTP(r.Header))
	writeJSON(w, http.StatusOK, recordResponse{Success: res.Success, Error: res.Err})
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	d := s.engineFor(r).Status(r.Context(), clientid.FromHTTP(r.Header))
	writeJSON(w, http.StatusOK, fromDecision(d))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", slog.Any("error", err))
	}
}
