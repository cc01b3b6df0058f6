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

// Package clientid derives a stable caller identity from request headers.
//
// The resolved key is either a validated IP literal taken from the usual
// edge/proxy headers, or a deterministic synthetic id hashed from the
// user-agent / accept-language / accept-encoding triple when no usable
// address is present.
package clientid

import (
	"net/http"
	"strconv"
	"strings"
)

// Headers is a case-insensitive string-to-string view of request headers.
// Keys are stored lowercased.
type Headers map[string]string

// FromHTTP flattens an http.Header into a Headers map. Multi-valued
// headers keep only their first value, which is all identity resolution
// ever looks at.
func FromHTTP(h http.Header) Headers {
	out := make(Headers, len(h))
	for k, vs := range h {
		if len(vs) == 0 {
			continue
		}
		out[strings.ToLower(k)] = vs[0]
	}
	return out
}

func (h Headers) Get(name string) string {
	if v, ok := h[name]; ok {
		return v
	}
	return h[strings.ToLower(name)]
}

const (
	// FallbackPrefix marks synthetic identities so they can never be
	// confused with a real address.
	FallbackPrefix = "fallback-"

	fallbackHexLen = 16
)

// Header sources in priority order. The first header that is present at
// all supplies the candidate; later sources are only consulted when the
// earlier ones are absent entirely.
const (
	headerCFConnectingIP = "cf-connecting-ip"           // CDN edge
	headerNFClientIP     = "x-nf-client-connection-ip"  // platform direct connection
	headerForwardedFor   = "x-forwarded-for"            // first entry wins
	headerRealIP         = "x-real-ip"
)

// Resolve returns the ClientKey for the given headers: a validated IP
// literal when one of the known headers carries one, otherwise a
// deterministic fallback id. Resolve never fails.
func Resolve(h Headers) string {
	candidate := ""
	switch {
	case h.Get(headerCFConnectingIP) != "":
		candidate = h.Get(headerCFConnectingIP)
	case h.Get(headerNFClientIP) != "":
		candidate = h.Get(headerNFClientIP)
	case h.Get(headerForwardedFor) != "":
		// Closest-to-client entry, not the last proxy in the chain.
		candidate = strings.TrimSpace(strings.SplitN(h.Get(headerForwardedFor), ",", 2)[0])
	case h.Get(headerRealIP) != "":
		candidate = h.Get(headerRealIP)
	}

	if candidate != "" && IsValidIP(candidate) {
		return candidate
	}

	return FallbackID(
		h.Get("user-agent"),
		h.Get("accept-language"),
		h.Get("accept-encoding"),
	)
}

// IsValidIP reports whether s looks like an IPv4 or full-form IPv6
// address. It is a pure function.
//
// IPv6 here means exactly eight colon-separated groups of 1-4 hex
// digits; compressed forms such as "::1" are rejected on purpose. That
// mirrors the historical validator this package replaces, and changing
// it would silently shift which callers land on the fallback path.
func IsValidIP(s string) bool {
	return isValidIPv4(s) || isValidIPv6(s)
}

func isValidIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		for i := 0; i < len(p); i++ {
			if p[i] < '0' || p[i] > '9' {
				return false
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

func isValidIPv6(s string) bool {
	groups := strings.Split(s, ":")
	if len(groups) != 8 {
		return false
	}
	for _, g := range groups {
		if len(g) < 1 || len(g) > 4 {
			return false
		}
		for i := 0; i < len(g); i++ {
			c := g[i]
			switch {
			case c >= '0' && c <= '9':
			case c >= 'a' && c <= 'f':
			case c >= 'A' && c <= 'F':
			default:
				return false
			}
		}
	}
	return true
}

// FallbackID builds a deterministic synthetic key from the three header
// values, each defaulting to "unknown" when absent.
//
// The hash is the classic 31-accumulator over a 32-bit signed integer,
// rendered as lowercase hex of its absolute value and truncated to 16
// characters. Weak and collision-prone, but deterministic — which is the
// property quota tracking actually needs. The exact algorithm is a
// behavioral contract: changing it changes which distinct clients share
// a bucket across versions.
func FallbackID(userAgent, acceptLanguage, acceptEncoding string) string {
	if userAgent == "" {
		userAgent = "unknown"
	}
	if acceptLanguage == "" {
		acceptLanguage = "unknown"
	}
	if acceptEncoding == "" {
		acceptEncoding = "unknown"
	}

	var h int32
	for _, r := range userAgent + "|" + acceptLanguage + "|" + acceptEncoding {
		h = h*31 + int32(r)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	hex := strconv.FormatInt(v, 16)
	if len(hex) > fallbackHexLen {
		hex = hex[:fallbackHexLen]
	}
	return FallbackPrefix + hex
}
