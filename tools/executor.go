package tools

import (
	"context"
	"fmt"

	"convo/session"
)

// PriceExecutor serves price_lookup calls from a QuoteSource. It satisfies
// the transport layer's ToolExecutor contract.
type PriceExecutor struct {
	source QuoteSource
}

func NewPriceExecutor(source QuoteSource) *PriceExecutor {
	return &PriceExecutor{source: source}
}

// Execute answers one tool call. Lookups are served from the fast path; the
// payload carries provisional=true when the value should be confirmed
// out-of-band later.
func (e *PriceExecutor) Execute(ctx context.Context, call session.ToolCall) (map[string]any, error) {
	switch call.Name {
	case ToolPriceLookup:
		symbol, _ := call.Arguments["symbol"].(string)
		if symbol == "" {
			return nil, fmt.Errorf("price_lookup: missing symbol argument")
		}
		q, err := e.source.Lookup(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("price_lookup: %w", err)
		}
		return payload(q), nil
	default:
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
}
