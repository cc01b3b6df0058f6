package quota

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quota/modules/apikey"
	"quota/modules/clock"
	qt "quota/modules/quota"
	"quota/modules/store/memory"
)

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testLimits() qt.Limits {
	return qt.Limits{
		Global: []qt.Window{
			{Name: qt.WindowHour, Duration: time.Hour, Limit: 500},
			{Name: qt.WindowDay, Duration: 24 * time.Hour, Limit: 5000},
		},
		Client: []qt.Window{
			{Name: qt.WindowMinute, Duration: time.Minute, Limit: 10},
			{Name: qt.WindowHour, Duration: time.Hour, Limit: 50},
		},
	}
}

func newTestService(t *testing.T, store qt.CounterStore) (*Service, *http.ServeMux) {
	t.Helper()
	engine := qt.NewEngine(store, clock.NewManualClock(testStart), testLimits())
	svc, err := NewService(Config{APIKeyHeader: "x-api-key"},
		map[string]*qt.Engine{"default": engine}, "default", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	svc.Register(mux)
	return svc, mux
}

func seed(t *testing.T, store qt.CounterStore, tier qt.Tier, key string, at time.Time, n int) {
	t.Helper()
	for range n {
		if err := store.Append(context.Background(), tier, key, at, 24*time.Hour); err != nil {
			t.Fatalf("seed append: %v", err)
		}
	}
}

func decodeCheck(t *testing.T, rec *httptest.ResponseRecorder) checkResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp checkResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestCheckGlobalDenied(t *testing.T) {
	store := memory.New()
	_, mux := newTestService(t, store)
	seed(t, store, qt.TierGlobal, qt.GlobalBucketKey, testStart.Add(-time.Minute), 501)

	req := httptest.NewRequest(http.MethodPost, "/v1/quota/check", nil)
	req.Header.Set("cf-connecting-ip", "203.0.113.7")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	resp := decodeCheck(t, rec)
	if resp.IsAllowed {
		t.Fatal("expected global denial")
	}
	if resp.LimitType == nil || *resp.LimitType != "global" {
		t.Fatalf("limitType = %v, want global", resp.LimitType)
	}
	if resp.GlobalLimits == nil || resp.GlobalLimits.HourlyUsage != 501 {
		t.Errorf("globalLimits = %+v, want hourlyUsage 501", resp.GlobalLimits)
	}
	if resp.IPLimits != nil {
		t.Error("ipLimits should be absent on a global denial")
	}
	if want := "Global rate limit exceeded: 501/500 per hour or 501/5000 per day"; resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}
}

func TestCheckThenRecord(t *testing.T) {
	store := memory.New()
	_, mux := newTestService(t, store)

	req := httptest.NewRequest(http.MethodPost, "/v1/quota/check", nil)
	req.Header.Set("cf-connecting-ip", "203.0.113.7")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	resp := decodeCheck(t, rec)
	if !resp.IsAllowed {
		t.Fatal("expected allow on empty buckets")
	}
	if resp.LimitType != nil {
		t.Errorf("limitType = %q, want null", *resp.LimitType)
	}
	if resp.ClientIP != "203.0.113.7" {
		t.Errorf("clientIP = %q", resp.ClientIP)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/quota/record", nil)
	req.Header.Set("cf-connecting-ip", "203.0.113.7")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var rr recordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &rr); err != nil {
		t.Fatal(err)
	}
	if !rr.Success {
		t.Fatalf("record failed: %s", rr.Error)
	}

	// one event in each tier's bucket
	limits := testLimits()
	global, err := store.Counts(context.Background(), qt.TierGlobal, qt.GlobalBucketKey, limits.Global, testStart)
	if err != nil {
		t.Fatal(err)
	}
	if global[0].Count != 1 {
		t.Errorf("global count = %d, want 1", global[0].Count)
	}
	client, err := store.Counts(context.Background(), qt.TierClient, "203.0.113.7", limits.Client, testStart)
	if err != nil {
		t.Fatal(err)
	}
	if client[0].Count != 1 {
		t.Errorf("client count = %d, want 1", client[0].Count)
	}
}

func TestStatusDoesNotMutate(t *testing.T) {
	store := memory.New()
	_, mux := newTestService(t, store)

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/v1/quota/status", nil)
		req.Header.Set("cf-connecting-ip", "203.0.113.7")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		resp := decodeCheck(t, rec)
		if !resp.IsAllowed {
			t.Fatal("status should not consume quota")
		}
		if resp.IPLimits == nil || resp.IPLimits.MinuteUsage != 0 {
			t.Errorf("ipLimits = %+v, want zero usage", resp.IPLimits)
		}
	}
}

func TestGuardDeniesAndSetsRetryAfter(t *testing.T) {
	store := memory.New()
	svc, _ := newTestService(t, store)
	seed(t, store, qt.TierClient, "203.0.113.7", testStart.Add(-time.Second), 10)

	var reached bool
	h := svc.Guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/factoid", nil)
	req.Header.Set("cf-connecting-ip", "203.0.113.7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if reached {
		t.Fatal("protected handler ran despite denial")
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestGuardRecordsAfterProtectedAction(t *testing.T) {
	store := memory.New()
	svc, _ := newTestService(t, store)

	h := svc.Guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/factoid", nil)
	req.Header.Set("cf-connecting-ip", "203.0.113.7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	client, err := store.Counts(context.Background(), qt.TierClient, "203.0.113.7", testLimits().Client, testStart)
	if err != nil {
		t.Fatal(err)
	}
	if client[0].Count != 1 {
		t.Errorf("client count = %d, want 1 recorded event", client[0].Count)
	}
}

func TestAPIKeySelectsProfile(t *testing.T) {
	store := memory.New()
	clk := clock.NewManualClock(testStart)

	conservative := testLimits()
	conservative.Client[0].Limit = 3

	hasher, err := apikey.NewHasher([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	const rawKey = "adf_test_key"

	svc, err := NewService(Config{APIKeyHeader: "x-api-key"},
		map[string]*qt.Engine{
			"default":      qt.NewEngine(store, clk, testLimits()),
			"conservative": qt.NewEngine(store, clk, conservative),
		},
		"default", hasher, map[string]string{hasher.Hash(rawKey): "conservative"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	svc.Register(mux)

	seed(t, store, qt.TierClient, "203.0.113.7", testStart.Add(-time.Second), 3)

	// keyed caller rides the conservative profile: 3/3 is a denial
	req := httptest.NewRequest(http.MethodPost, "/v1/quota/check", nil)
	req.Header.Set("cf-connecting-ip", "203.0.113.7")
	req.Header.Set("x-api-key", rawKey)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if resp := decodeCheck(t, rec); resp.IsAllowed {
		t.Error("keyed caller should be denied on the conservative profile")
	}

	// anonymous caller stays on the default profile: 3/10 is fine
	req = httptest.NewRequest(http.MethodPost, "/v1/quota/check", nil)
	req.Header.Set("cf-connecting-ip", "203.0.113.7")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if resp := decodeCheck(t, rec); !resp.IsAllowed {
		t.Error("anonymous caller should stay on the default profile")
	}

	// unknown key falls back to the default profile
	req = httptest.NewRequest(http.MethodPost, "/v1/quota/check", nil)
	req.Header.Set("cf-connecting-ip", "203.0.113.7")
	req.Header.Set("x-api-key", "adf_unknown")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if resp := decodeCheck(t, rec); !resp.IsAllowed {
		t.Error("unknown key should fall back to the default profile")
	}
}

func TestBurstBrake(t *testing.T) {
	store := memory.New()
	engine := qt.NewEngine(store, clock.NewManualClock(testStart), testLimits())
	svc, err := NewService(Config{APIKeyHeader: "x-api-key", BurstBrake: true, BurstPerSecond: 1, Burst: 1},
		map[string]*qt.Engine{"default": engine}, "default", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	h := svc.Guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// the single burst token allows one request; the second trips the brake
	codes := make([]int, 0, 2)
	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/factoid", nil)
		req.Header.Set("cf-connecting-ip", "203.0.113.7")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}
