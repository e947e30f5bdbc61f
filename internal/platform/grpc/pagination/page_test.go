package pagination

import "testing"

func TestLimitsClamp(t *testing.T) {
	tests := []struct {
		name      string
		limits    Limits
		requested int
		want      int
	}{
		{name: "zero uses default", limits: Messages, requested: 0, want: 50},
		{name: "negative uses default", limits: Inbox, requested: -3, want: 50},
		{name: "within range", limits: Messages, requested: 10, want: 10},
		{name: "above max", limits: Messages, requested: 500, want: 200},
		{name: "no default floors at one", limits: Limits{}, requested: 0, want: 1},
		{name: "no max keeps request", limits: Limits{Default: 5}, requested: 1000, want: 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.limits.Clamp(tt.requested); got != tt.want {
				t.Fatalf("Clamp(%d) = %d, want %d", tt.requested, got, tt.want)
			}
		})
	}
}
