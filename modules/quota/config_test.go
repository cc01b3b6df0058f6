package quota_test

import (
	"testing"
	"time"

	"quota/modules/quota"
)

func TestConfigBuildProfiles(t *testing.T) {
	cases := []struct {
		profile          string
		wantGlobalHourly int64
		wantClientMinute int64
	}{
		{"", 500, 10},
		{"default", 500, 10},
		{"conservative", 50, 3},
	}
	for _, c := range cases {
		limits, err := quota.Config{Profile: c.profile}.Build()
		if err != nil {
			t.Fatalf("profile %q: %v", c.profile, err)
		}
		if got := limits.Global[0].Limit; got != c.wantGlobalHourly {
			t.Errorf("profile %q global hourly = %d, want %d", c.profile, got, c.wantGlobalHourly)
		}
		if got := limits.Client[0].Limit; got != c.wantClientMinute {
			t.Errorf("profile %q client minute = %d, want %d", c.profile, got, c.wantClientMinute)
		}
	}
}

func TestConfigBuildOverrides(t *testing.T) {
	limits, err := quota.Config{
		Profile:           "default",
		GlobalHourlyLimit: 77,
		ClientMinuteLimit: 5,
	}.Build()
	if err != nil {
		t.Fatal(err)
	}
	if limits.Global[0].Limit != 77 {
		t.Errorf("global hourly = %d, want override 77", limits.Global[0].Limit)
	}
	if limits.Client[0].Limit != 5 {
		t.Errorf("client minute = %d, want override 5", limits.Client[0].Limit)
	}
	// untouched windows keep profile defaults
	if limits.Global[1].Limit != 5000 {
		t.Errorf("global daily = %d, want 5000", limits.Global[1].Limit)
	}
}

func TestConfigBuildUnknownProfile(t *testing.T) {
	if _, err := (quota.Config{Profile: "lenient"}).Build(); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestMaxWindow(t *testing.T) {
	ws := []quota.Window{
		{Name: quota.WindowMinute, Duration: time.Minute, Limit: 1},
		{Name: quota.WindowHour, Duration: time.Hour, Limit: 1},
	}
	if got := quota.MaxWindow(ws); got != time.Hour {
		t.Errorf("MaxWindow = %v, want 1h", got)
	}
}
