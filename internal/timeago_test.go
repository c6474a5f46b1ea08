package internal

import (
	"testing"
	"time"
)

func TestFormatTimeAgo(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"zero", 0, "0s ago"},
		{"seconds", 59 * time.Second, "59s ago"},
		{"minute boundary", 60 * time.Second, "1m ago"},
		{"minutes", 3599 * time.Second, "59m ago"},
		{"hour boundary", 3600 * time.Second, "1h ago"},
		{"hours", 86399 * time.Second, "23h ago"},
		{"day boundary", 86400 * time.Second, "1d ago"},
		{"just past a day", 86401 * time.Second, "1d ago"},
		{"days", 72 * time.Hour, "3d ago"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FormatTimeAgo(now.Add(-tc.ago), now)
			if got != tc.want {
				t.Fatalf("FormatTimeAgo(-%v) = %q, want %q", tc.ago, got, tc.want)
			}
		})
	}
}

func TestFormatTimeAgoFutureTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if got := FormatTimeAgo(now.Add(time.Minute), now); got != "0s ago" {
		t.Fatalf("future timestamp = %q, want %q", got, "0s ago")
	}
}
