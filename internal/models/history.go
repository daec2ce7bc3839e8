package models

import (
	"time"
)

// RunRecord is the audit entry for one completed invocation.
type RunRecord struct {
	ID         string
	Session    Session
	MoverCount int
	Delivered  bool
	CreatedAt  time.Time
}

// AlertRecord is one mover surfaced in a delivered digest.
type AlertRecord struct {
	RunID      string
	Symbol     string
	PctChange  float64
	Price      float64
	Strength   Strength
	DetectedAt time.Time
}
