// Package session maps wall-clock time onto trading-day phases.
package session

import (
	"time"

	"github.com/ct-trading/moverwatch/internal/models"
)

// Exchange schedule in local wall-clock seconds since midnight.
// Pre-market opens 04:00, regular hours run 09:30 through 16:00 inclusive.
const (
	preMarketOpenSec = 4 * 3600
	regularOpenSec   = 9*3600 + 30*60
	regularCloseSec  = 16 * 3600
)

// Current returns the trading session the instant falls in, evaluated in the
// exchange's local timezone. Pure; callers must re-evaluate every run since a
// long-lived process could straddle a boundary.
func Current(now time.Time, loc *time.Location) models.Session {
	local := now.In(loc)
	sec := local.Hour()*3600 + local.Minute()*60 + local.Second()

	switch {
	case sec >= preMarketOpenSec && sec < regularOpenSec:
		return models.SessionPreMarket
	case sec >= regularOpenSec && sec <= regularCloseSec:
		return models.SessionRegular
	default:
		return models.SessionClosed
	}
}
