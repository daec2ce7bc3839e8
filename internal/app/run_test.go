package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ct-trading/moverwatch/internal/config"
	"github.com/ct-trading/moverwatch/internal/detector"
	"github.com/ct-trading/moverwatch/internal/digest"
	"github.com/ct-trading/moverwatch/internal/ledger"
	"github.com/ct-trading/moverwatch/internal/models"
)

type fakeQuotes struct {
	quotes map[string]models.Quote
}

func (f *fakeQuotes) GetQuote(_ context.Context, symbol string) (models.Quote, error) {
	q, ok := f.quotes[symbol]
	if !ok {
		return models.Quote{}, errors.New("no data")
	}
	return q, nil
}

func (f *fakeQuotes) GetHistory(_ context.Context, _ string, _ int) ([]float64, error) {
	return nil, errors.New("no history")
}

type fakeSink struct {
	sent []string
	fail bool
}

func (f *fakeSink) Send(text string) error {
	if f.fail {
		return errors.New("telegram unavailable")
	}
	f.sent = append(f.sent, text)
	return nil
}

type fakeHistory struct {
	runs   []models.RunRecord
	alerts []models.AlertRecord
	last   time.Time
	hasRun bool
}

func (f *fakeHistory) RecordRun(run models.RunRecord, alerts []models.AlertRecord) error {
	f.runs = append(f.runs, run)
	f.alerts = append(f.alerts, alerts...)
	return nil
}

func (f *fakeHistory) LastRunTime() (time.Time, bool, error) {
	return f.last, f.hasRun, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Market: config.MarketConfig{
			Timezone: "America/New_York",
			Universe: []string{"XYZ", "ABC"},
		},
		Detector: config.DetectorConfig{
			PremarketThreshold: 1.0,
			RegularThreshold:   2.0,
			VolumeMultiplier:   1.5,
		},
		Digest: config.DigestConfig{DisplayCount: 6},
		Ledger: config.LedgerConfig{
			Path:       filepath.Join(t.TempDir(), "alerted.json"),
			ResetDaily: true,
		},
	}
}

// regularHours is a weekday instant at 10:00 New York time.
func regularHours(t *testing.T) (time.Time, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	return time.Date(2024, time.March, 12, 10, 0, 0, 0, loc), loc
}

func testDeps(t *testing.T, cfg *config.Config, quotes *fakeQuotes, sink *fakeSink, history *fakeHistory) Deps {
	t.Helper()
	now, loc := regularHours(t)
	deps := Deps{
		Quotes: quotes,
		Ledger: ledger.New(cfg.Ledger.Path),
		Detector: detector.New(detector.Config{
			PremarketThreshold: cfg.Detector.PremarketThreshold,
			RegularThreshold:   cfg.Detector.RegularThreshold,
			VolumeMultiplier:   cfg.Detector.VolumeMultiplier,
		}),
		Builder:  digest.NewBuilder(cfg.Digest.DisplayCount),
		Location: loc,
		Now:      func() time.Time { return now },
	}
	if sink != nil {
		deps.Sink = sink
	}
	if history != nil {
		deps.History = history
	}
	return deps
}

func moverQuote(symbol string) models.Quote {
	return models.Quote{
		Symbol:        symbol,
		LastPrice:     103,
		PreviousClose: 100,
		LastVolume:    2_000_000,
		AverageVolume: 1_000_000,
	}
}

func TestRun_QualifyingMoverIsDeliveredAndPersisted(t *testing.T) {
	cfg := testConfig(t)
	quotes := &fakeQuotes{quotes: map[string]models.Quote{"XYZ": moverQuote("XYZ")}}
	sink := &fakeSink{}
	history := &fakeHistory{}

	if err := Run(context.Background(), testDeps(t, cfg, quotes, sink, history), cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sink.sent))
	}
	msg := sink.sent[0]
	if !strings.Contains(msg, "`XYZ`") || !strings.Contains(msg, "Top Gainers") {
		t.Errorf("digest missing mover:\n%s", msg)
	}
	if !strings.Contains(msg, "🔥") {
		t.Errorf("3%% mover should carry the elevated emoji:\n%s", msg)
	}

	set, err := ledger.New(cfg.Ledger.Path).Load()
	if err != nil {
		t.Fatalf("reload ledger: %v", err)
	}
	if !set.Contains("XYZ") {
		t.Error("XYZ should be marked alerted after a delivered digest")
	}

	if len(history.runs) != 1 || !history.runs[0].Delivered {
		t.Errorf("expected 1 delivered run record, got %+v", history.runs)
	}
	if len(history.alerts) != 1 || history.alerts[0].Symbol != "XYZ" {
		t.Errorf("expected XYZ alert record, got %+v", history.alerts)
	}
}

func TestRun_SuppressionAcrossRuns(t *testing.T) {
	cfg := testConfig(t)
	quotes := &fakeQuotes{quotes: map[string]models.Quote{"XYZ": moverQuote("XYZ")}}
	sink := &fakeSink{}
	history := &fakeHistory{}
	deps := testDeps(t, cfg, quotes, sink, history)

	if err := Run(context.Background(), deps, cfg); err != nil {
		t.Fatal(err)
	}

	// Second run, same day, bigger move: still suppressed.
	quotes.quotes["XYZ"] = models.Quote{
		Symbol: "XYZ", LastPrice: 108, PreviousClose: 100,
		LastVolume: 5_000_000, AverageVolume: 1_000_000,
	}
	history.last = deps.Now()
	history.hasRun = true

	if err := Run(context.Background(), deps, cfg); err != nil {
		t.Fatal(err)
	}
	if len(sink.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sink.sent))
	}
	if strings.Contains(sink.sent[1], "Top Gainers") {
		t.Errorf("second digest must not re-include the alerted symbol:\n%s", sink.sent[1])
	}
	if !strings.Contains(sink.sent[1], "No stocks moving") {
		t.Errorf("expected no-movers line in second digest:\n%s", sink.sent[1])
	}
}

func TestRun_DailyResetReenablesSymbol(t *testing.T) {
	cfg := testConfig(t)
	quotes := &fakeQuotes{quotes: map[string]models.Quote{"XYZ": moverQuote("XYZ")}}
	sink := &fakeSink{}
	deps := testDeps(t, cfg, quotes, sink, nil)

	// Yesterday's run alerted XYZ.
	if err := deps.Ledger.Save(ledger.MarkAlerted(ledger.AlertedSet{}, []string{"XYZ"})); err != nil {
		t.Fatal(err)
	}
	history := &fakeHistory{last: deps.Now().Add(-24 * time.Hour), hasRun: true}
	deps.History = history

	if err := Run(context.Background(), deps, cfg); err != nil {
		t.Fatal(err)
	}
	if len(sink.sent) != 1 || !strings.Contains(sink.sent[0], "`XYZ`") {
		t.Errorf("new trading day should re-enable the symbol:\n%v", sink.sent)
	}
}

func TestRun_DailyResetSurvivesNoMoverRun(t *testing.T) {
	cfg := testConfig(t)
	// XYZ moved only 1% during regular hours: below threshold, no movers.
	quotes := &fakeQuotes{quotes: map[string]models.Quote{
		"XYZ": {Symbol: "XYZ", LastPrice: 101, PreviousClose: 100, LastVolume: 2_000_000, AverageVolume: 1_000_000},
	}}
	sink := &fakeSink{}
	deps := testDeps(t, cfg, quotes, sink, nil)

	// Yesterday's run alerted XYZ.
	if err := deps.Ledger.Save(ledger.MarkAlerted(ledger.AlertedSet{}, []string{"XYZ"})); err != nil {
		t.Fatal(err)
	}
	history := &fakeHistory{last: deps.Now().Add(-24 * time.Hour), hasRun: true}
	deps.History = history

	// First run of the new day produces no movers, so nothing would be saved
	// on delivery; the reset must persist anyway.
	if err := Run(context.Background(), deps, cfg); err != nil {
		t.Fatal(err)
	}
	set, err := deps.Ledger.Load()
	if err != nil {
		t.Fatalf("reload ledger: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("reset not persisted; ledger still holds %v", set.Symbols())
	}

	// Later the same day XYZ qualifies; with the first run recorded, the
	// boundary check now sees the same day, so only the persisted reset
	// keeps XYZ eligible.
	quotes.quotes["XYZ"] = moverQuote("XYZ")
	history.last = deps.Now()

	if err := Run(context.Background(), deps, cfg); err != nil {
		t.Fatal(err)
	}
	if len(sink.sent) != 2 || !strings.Contains(sink.sent[1], "`XYZ`") {
		t.Errorf("XYZ should re-qualify after the persisted reset:\n%v", sink.sent)
	}
}

func TestRun_ClosedRunAppliesDailyReset(t *testing.T) {
	cfg := testConfig(t)
	quotes := &fakeQuotes{quotes: map[string]models.Quote{"XYZ": moverQuote("XYZ")}}
	sink := &fakeSink{}
	deps := testDeps(t, cfg, quotes, sink, nil)

	if err := deps.Ledger.Save(ledger.MarkAlerted(ledger.AlertedSet{}, []string{"XYZ"})); err != nil {
		t.Fatal(err)
	}
	history := &fakeHistory{last: deps.Now().Add(-24 * time.Hour), hasRun: true}
	deps.History = history

	// A midnight cron tick: the market is closed, but the run still consumes
	// the day boundary by advancing LastRunTime, so it must also apply the
	// reset.
	loc := deps.Location
	midnight := time.Date(2024, time.March, 12, 0, 5, 0, 0, loc)
	deps.Now = func() time.Time { return midnight }

	if err := Run(context.Background(), deps, cfg); err != nil {
		t.Fatal(err)
	}
	set, err := deps.Ledger.Load()
	if err != nil {
		t.Fatalf("reload ledger: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("closed run must persist the reset; ledger still holds %v", set.Symbols())
	}

	// The pre-market run that follows sees the same day but a clean ledger.
	history.last = midnight
	deps.Now = func() time.Time {
		return time.Date(2024, time.March, 12, 8, 0, 0, 0, loc)
	}
	if err := Run(context.Background(), deps, cfg); err != nil {
		t.Fatal(err)
	}
	if len(sink.sent) != 2 || !strings.Contains(sink.sent[1], "`XYZ`") {
		t.Errorf("XYZ should qualify after the closed run's reset:\n%v", sink.sent)
	}
}

func TestRun_NoDataLeavesLedgerUntouched(t *testing.T) {
	cfg := testConfig(t)
	quotes := &fakeQuotes{quotes: map[string]models.Quote{}} // everything fails
	sink := &fakeSink{}

	if err := Run(context.Background(), testDeps(t, cfg, quotes, sink, nil), cfg); err != nil {
		t.Fatal(err)
	}
	if len(sink.sent) != 1 || sink.sent[0] != digest.NoDataText {
		t.Errorf("expected fixed no-data message, got %v", sink.sent)
	}
	if _, err := os.Stat(cfg.Ledger.Path); !os.IsNotExist(err) {
		t.Error("ledger must not be written on a no-data run")
	}
}

func TestRun_DeliveryFailurePersistsNothing(t *testing.T) {
	cfg := testConfig(t)
	quotes := &fakeQuotes{quotes: map[string]models.Quote{"XYZ": moverQuote("XYZ")}}
	sink := &fakeSink{fail: true}
	history := &fakeHistory{}

	if err := Run(context.Background(), testDeps(t, cfg, quotes, sink, history), cfg); err != nil {
		t.Fatalf("delivery failure must be recoverable, got %v", err)
	}
	if _, err := os.Stat(cfg.Ledger.Path); !os.IsNotExist(err) {
		t.Error("ledger must not be written when the send failed")
	}
	if len(history.runs) != 0 {
		t.Errorf("history must not be written when the send failed, got %+v", history.runs)
	}
}

func TestRun_ClosedSessionStillSendsMessage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Market.SectorTickers = []string{"SPY"}
	quotes := &fakeQuotes{quotes: map[string]models.Quote{
		"SPY": {Symbol: "SPY", Name: "SPDR S&P 500", LastPrice: 510, PreviousClose: 500, LastVolume: 1, AverageVolume: 1},
	}}
	sink := &fakeSink{}
	history := &fakeHistory{}
	deps := testDeps(t, cfg, quotes, sink, history)

	loc := deps.Location
	deps.Now = func() time.Time {
		return time.Date(2024, time.March, 12, 22, 0, 0, 0, loc)
	}

	if err := Run(context.Background(), deps, cfg); err != nil {
		t.Fatal(err)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("closed market must still send a message, got %d", len(sink.sent))
	}
	if !strings.Contains(sink.sent[0], "currently closed") {
		t.Errorf("expected closed notice:\n%s", sink.sent[0])
	}
	if !strings.Contains(sink.sent[0], "Market Sectors") {
		t.Errorf("closed message should still show the sector panel:\n%s", sink.sent[0])
	}
	if len(history.runs) != 1 || history.runs[0].Session != models.SessionClosed {
		t.Errorf("expected closed run record, got %+v", history.runs)
	}
}

func TestRun_PartialDataStillProducesDigest(t *testing.T) {
	cfg := testConfig(t)
	// ABC is in the universe but its quote fetch fails; the run continues.
	quotes := &fakeQuotes{quotes: map[string]models.Quote{"XYZ": moverQuote("XYZ")}}
	sink := &fakeSink{}

	if err := Run(context.Background(), testDeps(t, cfg, quotes, sink, nil), cfg); err != nil {
		t.Fatal(err)
	}
	if len(sink.sent) != 1 || !strings.Contains(sink.sent[0], "`XYZ`") {
		t.Errorf("partial data must not abort the batch:\n%v", sink.sent)
	}
}
