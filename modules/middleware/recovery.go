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

package middleware

import (
	"log/slog"
	"net/http"

	"quota/modules/middleware/problem"
)

// Recovery turns a handler panic into an RFC 7807 500 instead of a
// dropped connection. The panic value is logged, never echoed to the
// caller.
func Recovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic in handler",
						slog.String("url", r.URL.Path),
						slog.Any("error", rec),
					)
					problem.Write(w, problem.Internal("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
