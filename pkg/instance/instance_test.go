package instance

import "testing"

func TestGetIDPrefersExplicitID(t *testing.T) {
	t.Setenv("FOODAPP_INSTANCE_ID", "cron-1")
	if got := GetID(); got != "cron-1" {
		t.Fatalf("expected cron-1 got %q", got)
	}
}

func TestGetIDFallsBackToHostname(t *testing.T) {
	t.Setenv("FOODAPP_INSTANCE_ID", "")
	if got := GetID(); got == "" {
		t.Fatal("expected a non-empty instance id")
	}
}
