// Package models defines the core domain entities: quotes, mover records, and sessions.
package models

import (
	"errors"
)

// Quote is a single point-in-time snapshot for one ticker, fetched fresh each run.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name,omitempty"`
	LastPrice     float64 `json:"last_price"`
	PreviousClose float64 `json:"previous_close"`
	LastVolume    int64   `json:"last_volume"`
	AverageVolume int64   `json:"average_volume"`
}

// Validate checks the field constraints mover classification relies on.
// A zero or negative previous close would divide by zero downstream.
func (q *Quote) Validate() error {
	if q.Symbol == "" {
		return errors.New("symbol must not be empty")
	}
	if q.LastPrice <= 0 {
		return errors.New("last price must be positive")
	}
	if q.PreviousClose <= 0 {
		return errors.New("previous close must be positive")
	}
	if q.LastVolume < 0 {
		return errors.New("last volume must not be negative")
	}
	if q.AverageVolume < 0 {
		return errors.New("average volume must not be negative")
	}
	return nil
}

// Strength buckets the magnitude of a move for display emphasis.
type Strength string

const (
	StrengthNone     Strength = "none"
	StrengthElevated Strength = "elevated"
	StrengthExtreme  Strength = "extreme"
)

// MoverRecord is a qualifying mover derived from a Quote. It exists only
// within one run's computation.
type MoverRecord struct {
	Symbol    string
	PctChange float64
	Price     float64
	Strength  Strength
}

// SectorRow is one line of the sector/ETF snapshot panel. OK is false when
// neither the quote nor the history fallback produced usable data.
type SectorRow struct {
	Symbol    string
	Name      string
	Price     float64
	PctChange float64
	OK        bool
}
