package tools

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Quote is one price observation for a symbol.
type Quote struct {
	Symbol      string
	Price       float64
	Currency    string
	AsOf        time.Time
	Provisional bool
}

// QuoteSource supplies prices. Lookup answers immediately from whatever the
// source has on hand and may mark the quote provisional; Confirm performs the
// authoritative (slower) fetch that settles a provisional quote.
type QuoteSource interface {
	Lookup(ctx context.Context, symbol string) (Quote, error)
	Confirm(ctx context.Context, symbol string) (Quote, error)
}

// StaticQuoteSource is a QuoteSource backed by an in-memory reference table.
// Lookup always serves the cached value marked provisional; Confirm serves
// the same table stamped as settled. Set lets a feed (or a test) move prices
// between the two, which is how corrections become visible.
type StaticQuoteSource struct {
	mu     sync.Mutex
	quotes map[string]float64
}

// NewStaticQuoteSource seeds a source with a reference price table.
func NewStaticQuoteSource(prices map[string]float64) *StaticQuoteSource {
	quotes := make(map[string]float64, len(prices))
	for sym, p := range prices {
		quotes[sym] = p
	}
	return &StaticQuoteSource{quotes: quotes}
}

// Set updates the reference price for a symbol.
func (s *StaticQuoteSource) Set(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = price
}

// Lookup implements QuoteSource. The cached table answer is always
// provisional; callers are expected to Confirm it later.
func (s *StaticQuoteSource) Lookup(_ context.Context, symbol string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("unknown symbol %q", symbol)
	}
	return Quote{
		Symbol:      symbol,
		Price:       price,
		Currency:    "USD",
		AsOf:        time.Now(),
		Provisional: true,
	}, nil
}

// Confirm implements QuoteSource.
func (s *StaticQuoteSource) Confirm(_ context.Context, symbol string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("unknown symbol %q", symbol)
	}
	return Quote{
		Symbol:   symbol,
		Price:    price,
		Currency: "USD",
		AsOf:     time.Now(),
	}, nil
}

// payload flattens a quote into the tool-result payload shape.
func payload(q Quote) map[string]any {
	return map[string]any{
		"symbol":      q.Symbol,
		"price":       q.Price,
		"currency":    q.Currency,
		"as_of":       q.AsOf.Format(time.RFC3339),
		"provisional": q.Provisional,
	}
}
