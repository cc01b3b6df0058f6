package apikey

import (
	"strings"
	"testing"
)

func TestNewHasherRequiresSecret(t *testing.T) {
	if _, err := NewHasher(nil); err != ErrMissingSecret {
		t.Errorf("err = %v, want ErrMissingSecret", err)
	}
}

func TestHashDeterministicPerSecret(t *testing.T) {
	h1, err := NewHasher([]byte("secret-one"))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := NewHasher([]byte("secret-two"))
	if err != nil {
		t.Fatal(err)
	}

	if h1.Hash("adf_key") != h1.Hash("adf_key") {
		t.Error("same secret and key should hash identically")
	}
	if h1.Hash("adf_key") == h2.Hash("adf_key") {
		t.Error("different secrets should produce different digests")
	}
	if got := h1.Hash("adf_key"); len(got) != 64 || got != strings.ToLower(got) {
		t.Errorf("digest %q is not lowercase hex sha256", got)
	}
}

func TestVerify(t *testing.T) {
	h, err := NewHasher([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	digest := h.Hash("adf_key")
	if !h.Verify("adf_key", digest) {
		t.Error("matching key failed verification")
	}
	if h.Verify("adf_other", digest) {
		t.Error("wrong key passed verification")
	}
}

func TestGenerate(t *testing.T) {
	h, err := NewHasher([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	g, err := h.Generate("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(g.Plain, DefaultPrefix+"_") {
		t.Errorf("plain key %q missing default prefix", g.Plain)
	}
	if !h.Verify(g.Plain, g.Hashed) {
		t.Error("generated key does not verify against its own digest")
	}

	other, err := h.Generate("svc")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(other.Plain, "svc_") {
		t.Errorf("plain key %q missing custom prefix", other.Plain)
	}
	if other.Plain == g.Plain {
		t.Error("two generated keys collided")
	}
}
