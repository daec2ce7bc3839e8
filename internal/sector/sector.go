// Package sector builds the best-effort sector/ETF snapshot panel.
package sector

import (
	"context"

	"github.com/ct-trading/moverwatch/internal/logger"
	"github.com/ct-trading/moverwatch/internal/models"
)

// QuoteSource is the slice of the market-data provider the snapshot needs.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (models.Quote, error)
	GetHistory(ctx context.Context, symbol string, days int) ([]float64, error)
}

// Snapshot fetches one row per symbol. The fast path derives the percent move
// from the quote; when that fails it falls back to the last two daily closes.
// A symbol where both fail yields an OK=false row so the panel keeps its
// shape. Failures never abort the panel.
func Snapshot(ctx context.Context, src QuoteSource, symbols []string) []models.SectorRow {
	rows := make([]models.SectorRow, 0, len(symbols))
	for _, symbol := range symbols {
		rows = append(rows, fetchRow(ctx, src, symbol))
	}
	return rows
}

func fetchRow(ctx context.Context, src QuoteSource, symbol string) models.SectorRow {
	quote, err := src.GetQuote(ctx, symbol)
	if err == nil {
		row := models.SectorRow{
			Symbol: symbol,
			Name:   quote.Name,
			Price:  quote.LastPrice,
			OK:     true,
		}
		if quote.PreviousClose > 0 {
			row.PctChange = (quote.LastPrice - quote.PreviousClose) / quote.PreviousClose * 100
		}
		return row
	}
	logger.Debug("Sector quote for %s failed, trying history: %v", symbol, err)

	closes, histErr := src.GetHistory(ctx, symbol, 2)
	if histErr != nil || len(closes) == 0 {
		logger.Warn("Sector data unavailable for %s: %v", symbol, err)
		return models.SectorRow{Symbol: symbol, Name: symbol}
	}

	row := models.SectorRow{
		Symbol: symbol,
		Name:   symbol,
		Price:  closes[len(closes)-1],
		OK:     true,
	}
	if len(closes) >= 2 {
		prev := closes[len(closes)-2]
		if prev > 0 {
			row.PctChange = (row.Price - prev) / prev * 100
		}
	}
	return row
}
