// Package digest composes the Telegram-ready market digest: sector panel,
// ranked top gainers and losers, and the fallback texts for closed sessions
// and provider outages.
package digest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ct-trading/moverwatch/internal/models"
)

// NoDataText is the fixed provider-outage message body.
const NoDataText = "⚠️ No market data available\\."

// Builder formats mover records into a digest message.
type Builder struct {
	// DisplayCount caps each of the gainer and loser lists.
	DisplayCount int
}

func NewBuilder(displayCount int) *Builder {
	if displayCount <= 0 {
		displayCount = 6
	}
	return &Builder{DisplayCount: displayCount}
}

// Build renders the full digest: sector panel first (when supplied), then top
// gainers and losers, or a "no qualifying movers" line when both lists are
// empty. threshold is the active session threshold, shown in that line.
func (b *Builder) Build(records []models.MoverRecord, sess models.Session, sectors []models.SectorRow, threshold float64) string {
	var msg strings.Builder
	b.writeHeader(&msg, sess)
	writeSectorPanel(&msg, sectors)

	gainers, losers := Rank(records, b.DisplayCount)

	if len(gainers) == 0 && len(losers) == 0 {
		fmt.Fprintf(&msg, "\nℹ️ No stocks moving more than ±%s%% with volume yet\\.\n",
			Escape(fmt.Sprintf("%.1f", threshold)))
		return msg.String()
	}

	if len(gainers) > 0 {
		msg.WriteString("\n*🚀 Top Gainers*\n")
		for _, r := range gainers {
			writeMoverLine(&msg, r)
		}
	}
	if len(losers) > 0 {
		msg.WriteString("\n*🔻 Top Losers*\n")
		for _, r := range losers {
			writeMoverLine(&msg, r)
		}
	}
	return msg.String()
}

// ClosedMessage renders the digest sent outside trading hours: the sector
// panel plus a closed notice. Even a closed market produces a message.
func (b *Builder) ClosedMessage(sectors []models.SectorRow) string {
	var msg strings.Builder
	b.writeHeader(&msg, models.SessionClosed)
	writeSectorPanel(&msg, sectors)
	msg.WriteString("\n⏳ US market is currently closed\\.\n")
	return msg.String()
}

// NoDataMessage renders the batch-level provider-outage message.
func (b *Builder) NoDataMessage() string {
	return NoDataText
}

// Displayed returns the symbols that Build would show for records, in display
// order. The caller marks exactly these as alerted after a successful send.
func (b *Builder) Displayed(records []models.MoverRecord) []string {
	gainers, losers := Rank(records, b.DisplayCount)
	symbols := make([]string, 0, len(gainers)+len(losers))
	for _, r := range gainers {
		symbols = append(symbols, r.Symbol)
	}
	for _, r := range losers {
		symbols = append(symbols, r.Symbol)
	}
	return symbols
}

// Rank partitions records into gainers (pct > 0) and losers (pct < 0), sorts
// gainers descending and losers ascending by percent with a deterministic
// symbol-ascending tie-break, and truncates each list to limit.
func Rank(records []models.MoverRecord, limit int) (gainers, losers []models.MoverRecord) {
	for _, r := range records {
		switch {
		case r.PctChange > 0:
			gainers = append(gainers, r)
		case r.PctChange < 0:
			losers = append(losers, r)
		}
	}

	sort.Slice(gainers, func(i, j int) bool {
		if gainers[i].PctChange != gainers[j].PctChange {
			return gainers[i].PctChange > gainers[j].PctChange
		}
		return gainers[i].Symbol < gainers[j].Symbol
	})
	sort.Slice(losers, func(i, j int) bool {
		if losers[i].PctChange != losers[j].PctChange {
			return losers[i].PctChange < losers[j].PctChange
		}
		return losers[i].Symbol < losers[j].Symbol
	})

	if len(gainers) > limit {
		gainers = gainers[:limit]
	}
	if len(losers) > limit {
		losers = losers[:limit]
	}
	return gainers, losers
}

func (b *Builder) writeHeader(msg *strings.Builder, sess models.Session) {
	fmt.Fprintf(msg, "📊 *US Market Snapshot* \\(%s\\)\n", Escape(sess.String()))
}

func writeSectorPanel(msg *strings.Builder, sectors []models.SectorRow) {
	if len(sectors) == 0 {
		return
	}
	msg.WriteString("\n*📈 Market Sectors*\n")
	for _, row := range sectors {
		name := row.Name
		if name == "" {
			name = row.Symbol
		}
		if !row.OK {
			fmt.Fprintf(msg, "`%s` %s — N/A ⚪\n", Escape(row.Symbol), Escape(name))
			continue
		}
		fmt.Fprintf(msg, "`%s` %s — $%s \\(%s%%\\) %s\n",
			Escape(row.Symbol),
			Escape(name),
			Escape(fmt.Sprintf("%.2f", row.Price)),
			Escape(fmt.Sprintf("%.2f", row.PctChange)),
			directionIcon(row.PctChange),
		)
	}
}

func writeMoverLine(msg *strings.Builder, r models.MoverRecord) {
	if emoji := strengthEmoji(r.Strength); emoji != "" {
		msg.WriteString(emoji)
		msg.WriteString(" ")
	}
	fmt.Fprintf(msg, "`%s` %s%% \\($%s\\)\n",
		Escape(r.Symbol),
		Escape(fmt.Sprintf("%.2f", r.PctChange)),
		Escape(fmt.Sprintf("%.2f", r.Price)),
	)
}

func strengthEmoji(s models.Strength) string {
	switch s {
	case models.StrengthExtreme:
		return "🚨"
	case models.StrengthElevated:
		return "🔥"
	default:
		return ""
	}
}

func directionIcon(pct float64) string {
	switch {
	case pct > 0:
		return "🟢"
	case pct < 0:
		return "🔴"
	default:
		return "⚪"
	}
}

// Escape escapes special characters for Telegram MarkdownV2.
func Escape(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
