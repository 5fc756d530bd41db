// Package pricefeed fetches live market data for alert evaluation.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
)

// PriceSnapshot is one observation of a symbol from the feed. Snapshots are
// ephemeral; they are never persisted.
type PriceSnapshot struct {
	Symbol        string           `json:"symbol"`
	Price         decimal.Decimal  `json:"price"`
	ChangePercent *decimal.Decimal `json:"change_percent"` // nil when the feed omits it
	Source        string           `json:"source"`
	At            time.Time        `json:"at"`
}

// Oracle answers point-in-time price queries. A nil snapshot with a nil error
// means the feed has no data for the symbol; callers must treat that as
// "skip", not as zero.
type Oracle interface {
	GetPrice(ctx context.Context, symbol string) (*PriceSnapshot, error)
}

const sourceBinance = "binance"

// Binance error code for an unknown trading symbol.
const codeInvalidSymbol = -1121

type binanceOracle struct {
	cli *binance.Client
}

// NewBinanceOracle creates an Oracle backed by the Binance 24h ticker endpoint.
func NewBinanceOracle(cli *binance.Client) Oracle {
	return &binanceOracle{
		cli: cli,
	}
}

func (o *binanceOracle) GetPrice(ctx context.Context, symbol string) (*PriceSnapshot, error) {
	stats, err := o.cli.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeInvalidSymbol {
			return nil, nil
		}
		return nil, err
	}
	if len(stats) == 0 {
		return nil, nil
	}
	return snapshotFromStats(stats[0], time.Now().UTC())
}

// snapshotFromStats converts the exchange payload, tolerating a missing or
// malformed change percentage but not a malformed price.
func snapshotFromStats(s *binance.PriceChangeStats, at time.Time) (*PriceSnapshot, error) {
	price, err := decimal.NewFromString(s.LastPrice)
	if err != nil {
		return nil, fmt.Errorf("parse last price %q for %s: %w", s.LastPrice, s.Symbol, err)
	}

	snapshot := &PriceSnapshot{
		Symbol: s.Symbol,
		Price:  price,
		Source: sourceBinance,
		At:     at,
	}
	if change, err := decimal.NewFromString(s.PriceChangePercent); err == nil {
		snapshot.ChangePercent = &change
	}
	return snapshot, nil
}
