// Package app orchestrates one digest run: session gating, quote collection,
// mover classification, digest delivery, and state persistence.
package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ct-trading/moverwatch/internal/config"
	"github.com/ct-trading/moverwatch/internal/detector"
	"github.com/ct-trading/moverwatch/internal/digest"
	"github.com/ct-trading/moverwatch/internal/ledger"
	"github.com/ct-trading/moverwatch/internal/logger"
	"github.com/ct-trading/moverwatch/internal/models"
	"github.com/ct-trading/moverwatch/internal/sector"
	"github.com/ct-trading/moverwatch/internal/session"
)

// QuoteSource supplies per-ticker snapshots and daily closes.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (models.Quote, error)
	GetHistory(ctx context.Context, symbol string, days int) ([]float64, error)
}

// NotificationSink delivers a composed digest.
type NotificationSink interface {
	Send(text string) error
}

// History records completed runs. It backs the daily ledger reset and the
// audit trail; a nil History degrades both, never the digest itself.
type History interface {
	RecordRun(run models.RunRecord, alerts []models.AlertRecord) error
	LastRunTime() (time.Time, bool, error)
}

// Deps bundles the collaborators a run needs. Sink may be nil when
// notifications are disabled; the digest is then logged and counted as
// delivered. Now defaults to time.Now.
type Deps struct {
	Quotes   QuoteSource
	Sink     NotificationSink
	Ledger   *ledger.Ledger
	History  History
	Detector *detector.Detector
	Builder  *digest.Builder
	Location *time.Location
	Now      func() time.Time
}

// Run executes one snapshot-and-notify cycle. Only unusable dependencies
// would produce an error; data gaps, delivery failures, and persistence
// problems degrade per the failure policy and still return nil.
func Run(ctx context.Context, deps Deps, cfg *config.Config) error {
	now := time.Now()
	if deps.Now != nil {
		now = deps.Now()
	}
	sess := session.Current(now, deps.Location)
	logger.Info("Starting run (session: %s)", sess)

	var sectors []models.SectorRow
	if len(cfg.Market.SectorTickers) > 0 {
		sectors = sector.Snapshot(ctx, deps.Quotes, cfg.Market.SectorTickers)
	}

	// The ledger is loaded before the session gate: every run advances the
	// recorded LastRunTime, so a closed-session tick (a midnight cron run)
	// would otherwise consume the day boundary without the reset ever firing.
	alerted := loadAlerted(deps, cfg, now)

	if sess == models.SessionClosed {
		delivered := deliver(deps.Sink, deps.Builder.ClosedMessage(sectors))
		recordRun(deps.History, sess, now, delivered, nil)
		logger.Info("Market closed; sent snapshot-only digest")
		return nil
	}

	quotes, unavailable := fetchQuotes(ctx, deps.Quotes, cfg.AllTickers())
	if len(unavailable) > 0 {
		logger.Warn("Data unavailable for %d of %d symbols: %v",
			len(unavailable), len(cfg.AllTickers()), unavailable)
	}
	if len(quotes) == 0 {
		logger.Error("Provider returned no usable data for the whole universe")
		delivered := deliver(deps.Sink, deps.Builder.NoDataMessage())
		recordRun(deps.History, sess, now, delivered, nil)
		return nil
	}

	records := deps.Detector.ClassifyAll(quotes, sess, alerted)
	logger.Info("Classified %d movers from %d quotes", len(records), len(quotes))

	text := deps.Builder.Build(records, sess, sectors, thresholdFor(cfg, sess))
	if !deliver(deps.Sink, text) {
		// Consistency rule: symbols are only marked alerted once the digest
		// containing them has actually been delivered.
		logger.Error("Digest delivery failed; discarding ledger and history updates")
		return nil
	}

	displayed := deps.Builder.Displayed(records)
	if len(displayed) > 0 {
		updated := ledger.MarkAlerted(alerted, displayed)
		if err := deps.Ledger.Save(updated); err != nil {
			logger.Error("Failed to persist ledger (will re-alert next run): %v", err)
		} else {
			logger.Info("Marked %d symbols alerted", len(displayed))
		}
	}

	recordRun(deps.History, sess, now, true, alertRecords(records, displayed, now))
	return nil
}

// loadAlerted loads the suppression set and applies the daily reset: a new
// exchange-local day starts with a clean slate. The reset keys off the run
// history so a stale cached state file cannot defeat it; without history the
// set simply carries over.
//
// A triggered reset is persisted immediately. Every run advances the recorded
// LastRunTime, so an in-memory-only reset would be lost as soon as a run ends
// without saving the ledger (no qualifying movers) and the stale set would
// survive for the rest of the day.
func loadAlerted(deps Deps, cfg *config.Config, now time.Time) ledger.AlertedSet {
	alerted, err := deps.Ledger.Load()
	if err != nil {
		logger.Warn("Ledger unreadable, starting with empty set: %v", err)
	}

	if !cfg.Ledger.ResetDaily || deps.History == nil || len(alerted) == 0 {
		return alerted
	}

	last, ok, err := deps.History.LastRunTime()
	if err != nil {
		logger.Warn("Failed to read run history, keeping ledger as-is: %v", err)
		return alerted
	}
	if ok && !sameDay(last, now, deps.Location) {
		logger.Info("New trading day; resetting %d-symbol alerted set", len(alerted))
		cleared := ledger.AlertedSet{}
		if err := deps.Ledger.Save(cleared); err != nil {
			logger.Error("Failed to persist ledger reset: %v", err)
		}
		return cleared
	}
	return alerted
}

// fetchQuotes polls the universe sequentially. A failed symbol is excluded
// and reported; it never aborts the batch.
func fetchQuotes(ctx context.Context, src QuoteSource, symbols []string) (quotes []models.Quote, unavailable []string) {
	for _, symbol := range symbols {
		quote, err := src.GetQuote(ctx, symbol)
		if err != nil {
			logger.Debug("Quote for %s unavailable: %v", symbol, err)
			unavailable = append(unavailable, symbol)
			continue
		}
		quotes = append(quotes, quote)
	}
	return quotes, unavailable
}

func deliver(sink NotificationSink, text string) bool {
	if sink == nil {
		logger.Info("Notifications disabled; digest:\n%s", text)
		return true
	}
	if err := sink.Send(text); err != nil {
		logger.Error("Failed to send notification: %v", err)
		return false
	}
	return true
}

func recordRun(history History, sess models.Session, now time.Time, delivered bool, alerts []models.AlertRecord) {
	if history == nil {
		return
	}
	run := models.RunRecord{
		ID:         uuid.New().String(),
		Session:    sess,
		MoverCount: len(alerts),
		Delivered:  delivered,
		CreatedAt:  now,
	}
	for i := range alerts {
		alerts[i].RunID = run.ID
	}
	if err := history.RecordRun(run, alerts); err != nil {
		logger.Warn("Failed to record run history: %v", err)
	}
}

func alertRecords(records []models.MoverRecord, displayed []string, now time.Time) []models.AlertRecord {
	bySymbol := make(map[string]models.MoverRecord, len(records))
	for _, r := range records {
		bySymbol[r.Symbol] = r
	}
	out := make([]models.AlertRecord, 0, len(displayed))
	for _, symbol := range displayed {
		r, ok := bySymbol[symbol]
		if !ok {
			continue
		}
		out = append(out, models.AlertRecord{
			Symbol:     r.Symbol,
			PctChange:  r.PctChange,
			Price:      r.Price,
			Strength:   r.Strength,
			DetectedAt: now,
		})
	}
	return out
}

func thresholdFor(cfg *config.Config, sess models.Session) float64 {
	if sess == models.SessionPreMarket {
		return cfg.Detector.PremarketThreshold
	}
	return cfg.Detector.RegularThreshold
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	la, lb := a.In(loc), b.In(loc)
	return la.Year() == lb.Year() && la.YearDay() == lb.YearDay()
}
