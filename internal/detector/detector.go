// Package detector classifies quotes as qualifying movers using session-aware
// percentage thresholds and a volume-spike filter.
package detector

import (
	"github.com/shopspring/decimal"

	"github.com/ct-trading/moverwatch/internal/ledger"
	"github.com/ct-trading/moverwatch/internal/models"
)

// Strength bands on absolute percent change.
const (
	extremePct  = 5.0
	elevatedPct = 3.0
)

type Config struct {
	// PremarketThreshold is the minimum absolute percent change during
	// pre-market. It is stricter (lower) than the regular threshold because
	// pre-market moves on thin books are already significant at smaller sizes.
	PremarketThreshold float64
	RegularThreshold   float64
	// VolumeMultiplier gates on lastVolume >= averageVolume * multiplier.
	// Movement on light volume is noise.
	VolumeMultiplier float64
}

func DefaultConfig() Config {
	return Config{
		PremarketThreshold: 1.0,
		RegularThreshold:   2.0,
		VolumeMultiplier:   1.5,
	}
}

// Detector applies the mover qualification policy. It is stateless and pure:
// identical inputs always yield identical outputs.
type Detector struct {
	config Config
}

func New(config Config) *Detector {
	return &Detector{config: config}
}

// thresholdFor selects the session threshold. The caller gates execution on
// session, so Closed only shows up here in defensive paths; it gets the
// regular threshold.
func (d *Detector) thresholdFor(sess models.Session) float64 {
	if sess == models.SessionPreMarket {
		return d.config.PremarketThreshold
	}
	return d.config.RegularThreshold
}

// Classify decides whether a quote qualifies as a mover. The boolean is false
// when the quote is rejected: invalid fields, below-threshold move, light
// volume, or a symbol already in the alerted set.
//
// The threshold edge is inclusive: |pct| equal to the threshold qualifies.
func (d *Detector) Classify(q models.Quote, sess models.Session, alerted ledger.AlertedSet) (models.MoverRecord, bool) {
	if err := q.Validate(); err != nil {
		return models.MoverRecord{}, false
	}

	pct := (q.LastPrice - q.PreviousClose) / q.PreviousClose * 100

	absPct := pct
	if absPct < 0 {
		absPct = -absPct
	}
	if absPct < d.thresholdFor(sess) {
		return models.MoverRecord{}, false
	}

	if float64(q.LastVolume) < float64(q.AverageVolume)*d.config.VolumeMultiplier {
		return models.MoverRecord{}, false
	}

	if alerted.Contains(q.Symbol) {
		return models.MoverRecord{}, false
	}

	return models.MoverRecord{
		Symbol:    q.Symbol,
		PctChange: round2(pct),
		Price:     round2(q.LastPrice),
		Strength:  strengthFor(absPct),
	}, true
}

// ClassifyAll runs Classify over a batch. Per-quote rejections never abort
// the batch.
func (d *Detector) ClassifyAll(quotes []models.Quote, sess models.Session, alerted ledger.AlertedSet) []models.MoverRecord {
	var records []models.MoverRecord
	for _, q := range quotes {
		if rec, ok := d.Classify(q, sess, alerted); ok {
			records = append(records, rec)
		}
	}
	return records
}

func strengthFor(absPct float64) models.Strength {
	switch {
	case absPct >= extremePct:
		return models.StrengthExtreme
	case absPct >= elevatedPct:
		return models.StrengthElevated
	default:
		return models.StrengthNone
	}
}

// round2 rounds half away from zero to two decimals. Decimal arithmetic keeps
// values like 2.675 from rounding down through float representation error.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
