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

// Package apikey hashes and verifies caller API keys. Only the
// HMAC-SHA256 digest of a key is ever stored or configured; the raw key
// exists solely in the caller's hands.
package apikey

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const (
	DefaultPrefix = "adf"

	defaultKeyBytes = 30
)

var ErrMissingSecret = errors.New("missing api key secret")

type Config struct {
	Secret string `env:"SECRET,notEmpty"`
}

// Hasher derives stable digests of raw API keys, tied to a server-side
// secret so leaked digests cannot be brute-forced offline against a
// public algorithm alone.
type Hasher struct {
	secret []byte
}

func NewHasher(secret []byte) (*Hasher, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	return &Hasher{secret: secret}, nil
}

// Hash returns the lowercase hex HMAC-SHA256 digest of a raw key.
func (h *Hasher) Hash(rawKey string) string {
	mac := hmac.New(sha256.New, h.secret)
	_, _ = mac.Write([]byte(rawKey))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether rawKey hashes to hashedKey, in constant time.
func (h *Hasher) Verify(rawKey, hashedKey string) bool {
	return hmac.Equal([]byte(h.Hash(rawKey)), []byte(hashedKey))
}

// Generated carries both representations of a freshly minted key: the
// plain form is shown to the caller once, the hashed form is what gets
// configured server-side.
type Generated struct {
	Plain  string
	Hashed string
}

// Generate mints a new random key with the given prefix.
func (h *Hasher) Generate(prefix string) (Generated, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	buf := make([]byte, defaultKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return Generated{}, err
	}
	plain := prefix + "_" + base64.RawURLEncoding.EncodeToString(buf)
	return Generated{Plain: plain, Hashed: h.Hash(plain)}, nil
}
