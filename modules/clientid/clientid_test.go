package clientid

import (
	"strings"
	"testing"
)

func TestIsValidIP(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"192.168.1.1", true},
		{"0.0.0.0", true},
		{"255.255.255.255", true},
		{"203.0.113.7", true},
		{"256.1.1.1", false},
		{"1.2.3", false},
		{"1.2.3.4.5", false},
		{"1.2.3.-4", false},
		{"a.b.c.d", false},
		{"1.2.3.1000", false},
		{"", false},
		{"not-an-ip", false},
		{"2001:0db8:85a3:0000:0000:8a2e:0370:7334", true},
		{"2001:db8:85a3:0:0:8a2e:370:7334", true},
		// compressed IPv6 is rejected on purpose
		{"::1", false},
		{"2001:db8::1", false},
		{"2001:0db8:85a3:0000:0000:8a2e:0370", false},
		{"2001:0db8:85a3:0000:0000:8a2e:0370:7334:abcd", false},
		{"gggg:0db8:85a3:0000:0000:8a2e:0370:7334", false},
	}
	for _, c := range cases {
		if got := IsValidIP(c.in); got != c.want {
			t.Errorf("IsValidIP(%q) = %v, want %v", c.in, got, c.want)
		}
		// pure function: repeated calls agree
		if got := IsValidIP(c.in); got != c.want {
			t.Errorf("IsValidIP(%q) second call = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestFallbackIDDeterministic(t *testing.T) {
	a := FallbackID("Mozilla/5.0", "en-US", "gzip")
	b := FallbackID("Mozilla/5.0", "en-US", "gzip")
	if a != b {
		t.Fatalf("same inputs produced %q and %q", a, b)
	}
	if !strings.HasPrefix(a, FallbackPrefix) {
		t.Errorf("fallback id %q missing prefix", a)
	}
	if len(a) > len(FallbackPrefix)+16 {
		t.Errorf("fallback id %q longer than 16 hex chars", a)
	}
}

func TestFallbackIDComponentSensitivity(t *testing.T) {
	base := FallbackID("Mozilla/5.0", "en-US", "gzip")
	variants := []string{
		FallbackID("curl/8.0", "en-US", "gzip"),
		FallbackID("Mozilla/5.0", "de-DE", "gzip"),
		FallbackID("Mozilla/5.0", "en-US", "br"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base id %q", i, base)
		}
	}
}

func TestFallbackIDDefaultsMissingComponents(t *testing.T) {
	if FallbackID("", "", "") != FallbackID("unknown", "unknown", "unknown") {
		t.Error("absent components should default to the literal \"unknown\"")
	}
}

func TestResolvePriorityOrder(t *testing.T) {
	h := Headers{
		"cf-connecting-ip": "1.1.1.1",
		"x-forwarded-for":  "2.2.2.2",
		"x-real-ip":        "3.3.3.3",
	}
	if got := Resolve(h); got != "1.1.1.1" {
		t.Errorf("Resolve = %q, want cf-connecting-ip value", got)
	}
}

func TestResolveForwardedForFirstEntry(t *testing.T) {
	h := Headers{"x-forwarded-for": "192.168.1.1, 10.0.0.1"}
	if got := Resolve(h); got != "192.168.1.1" {
		t.Errorf("Resolve = %q, want first forwarded-for entry", got)
	}
}

func TestResolveInvalidCandidateFallsBack(t *testing.T) {
	h := Headers{
		"cf-connecting-ip": "not-an-ip",
		"user-agent":       "Mozilla/5.0",
	}
	got := Resolve(h)
	if !strings.HasPrefix(got, FallbackPrefix) {
		t.Errorf("invalid candidate should fall back, got %q", got)
	}
	// fallback stays stable for the same headers
	if again := Resolve(h); again != got {
		t.Errorf("fallback not deterministic: %q vs %q", got, again)
	}
}

func TestResolveNoHeadersFallsBack(t *testing.T) {
	got := Resolve(Headers{})
	if !strings.HasPrefix(got, FallbackPrefix) {
		t.Errorf("empty headers should fall back, got %q", got)
	}
}

func TestHeadersCaseInsensitive(t *testing.T) {
	h := Headers{"cf-connecting-ip": "203.0.113.7"}
	if h.Get("CF-Connecting-IP") != "203.0.113.7" {
		t.Error("Get should be case-insensitive")
	}
}
