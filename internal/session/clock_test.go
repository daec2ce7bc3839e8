package session

import (
	"testing"
	"time"

	"github.com/ct-trading/moverwatch/internal/models"
)

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}
	return loc
}

func TestCurrent(t *testing.T) {
	loc := eastern(t)

	tests := []struct {
		name string
		hour int
		min  int
		sec  int
		want models.Session
	}{
		{"midnight", 0, 0, 0, models.SessionClosed},
		{"just before pre-market", 3, 59, 59, models.SessionClosed},
		{"pre-market open", 4, 0, 0, models.SessionPreMarket},
		{"mid pre-market", 7, 30, 0, models.SessionPreMarket},
		{"last pre-market second", 9, 29, 59, models.SessionPreMarket},
		{"regular open", 9, 30, 0, models.SessionRegular},
		{"midday", 12, 0, 0, models.SessionRegular},
		{"regular close boundary", 16, 0, 0, models.SessionRegular},
		{"just after close", 16, 0, 1, models.SessionClosed},
		{"evening", 20, 0, 0, models.SessionClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A weekday; the clock keys off wall-clock time only.
			now := time.Date(2024, time.March, 12, tt.hour, tt.min, tt.sec, 0, loc)
			if got := Current(now, loc); got != tt.want {
				t.Errorf("Current(%02d:%02d:%02d) = %v, want %v", tt.hour, tt.min, tt.sec, got, tt.want)
			}
		})
	}
}

func TestCurrentConvertsTimezone(t *testing.T) {
	loc := eastern(t)

	// 14:30 UTC is 10:30 in New York during daylight saving time.
	now := time.Date(2024, time.June, 10, 14, 30, 0, 0, time.UTC)
	if got := Current(now, loc); got != models.SessionRegular {
		t.Errorf("Current(14:30 UTC) = %v, want %v", got, models.SessionRegular)
	}

	// 02:00 UTC the same day is 22:00 the previous evening in New York.
	now = time.Date(2024, time.June, 10, 2, 0, 0, 0, time.UTC)
	if got := Current(now, loc); got != models.SessionClosed {
		t.Errorf("Current(02:00 UTC) = %v, want %v", got, models.SessionClosed)
	}
}
