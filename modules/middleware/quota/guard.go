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

package quota

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"quota/modules/clientid"
	"quota/modules/middleware/problem"
	qt "quota/modules/quota"

	"github.com/gofrs/uuid/v5"
)

// Guard gates a protected handler behind the quota flow: check before,
// record after. Denials answer with an RFC 7807 429 carrying the quota
// detail as extensions plus a Retry-After hint.
//
// Recording happens after next returns, whatever its status — the
// protected action already ran and the bookkeeping is best-effort, so a
// failed record is logged and otherwise swallowed.
func (s *Service) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := ""
		if id, err := uuid.NewV7(); err == nil {
			requestID = id.String()
		}

		// Local brake first: protects the backing store itself from a
		// hot loop, before any network round trip.
		if s.brake != nil && !s.brake.Allow() {
			slog.Debug("local burst brake tripped",
				slog.String("request_id", requestID),
				slog.String("url", r.URL.Path),
			)
			problem.Write(w, problem.TooManyRequests(http.StatusText(http.StatusTooManyRequests)))
			return
		}

		hdrs := clientid.FromHTTP(r.Header)
		engine := s.engineFor(r)

		start := time.Now()
		d := engine.Check(r.Context(), hdrs)
		s.metrics.RecordDecision(r.Context(), d.Allowed, string(d.LimitType), d.Err != "",
			float64(time.Since(start).Microseconds())/1000.0)

		if !d.Allowed {
			slog.Debug("quota exceeded",
				slog.String("request_id", requestID),
				slog.String("url", r.URL.Path),
				slog.String("limit_type", string(d.LimitType)),
				slog.String("client_key", d.ClientKey),
			)
			if d.RetryAfter > 0 {
				w.Header().Set("Retry-After",
					strconv.FormatInt(int64(d.RetryAfter.Seconds())+1, 10))
			}
			problem.Write(w, problem.TooManyRequests(qt.Message(d),
				problem.WithExtension("limitType", string(d.LimitType)),
				problem.WithExtension("clientIP", d.ClientKey),
			))
			return
		}

		next.ServeHTTP(w, r)

		if res := engine.Record(r.Context(), hdrs); !res.Success {
			slog.Warn("usage record failed after protected action",
				slog.String("request_id", requestID),
				slog.String("url", r.URL.Path),
				slog.String("error", res.Err),
			)
		}
	})
}
