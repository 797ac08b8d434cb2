// Package tools defines the server-executed tools the assistant can invoke
// and the refresher that corrects provisional tool results after they have
// been displayed.
package tools

import (
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ToolPriceLookup is the tool the backend invokes to quote a symbol.
const ToolPriceLookup = "price_lookup"

// Catalog returns the tool descriptors offered to the backend with every
// request.
func Catalog() []mcptypes.Tool {
	return []mcptypes.Tool{
		{
			Name:        ToolPriceLookup,
			Description: "Look up the current price for a ticker symbol. Results may be served from cache and refined shortly afterwards.",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"symbol": map[string]any{
						"type":        "string",
						"description": "Ticker symbol, e.g. ACME",
					},
				},
				Required: []string{"symbol"},
			},
		},
	}
}
