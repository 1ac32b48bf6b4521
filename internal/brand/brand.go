// Package brand holds the static copy and defaults for each brand variant
// served by the console.
package brand

import (
	"fmt"
	"strings"

	"github.com/innohedge/console/internal/apiclient"
)

// Market is one card in the landing page markets section.
type Market struct {
	Title       string
	Description string
}

// Brand describes one brand variant.
type Brand struct {
	Key          string
	Name         string
	SupportEmail string
	Headline     string
	Tagline      string
	Markets      []Market
}

var markets = []Market{
	{Title: "Cryptocurrency", Description: "Trade Bitcoin, Ethereum, and hundreds of altcoins with zero slippage."},
	{Title: "Stocks", Description: "Invest in global companies with fractional shares and advanced charting."},
	{Title: "Forex", Description: "Trade currency pairs with leverage and tight spreads."},
}

var brands = map[string]Brand{
	"innohedge": {
		Key:          "innohedge",
		Name:         "InnoHedge",
		SupportEmail: "support@innohedge.com",
		Headline:     "Your Trading Revolution",
		Tagline:      "Experience lightning-fast trades, real-time analytics, and unmatched security in the world of crypto, stocks, and forex.",
		Markets:      markets,
	},
	"innohed": {
		Key:          "innohed",
		Name:         "Innohed",
		SupportEmail: "support@innohed.com",
		Headline:     "The Future of Trading",
		Tagline:      "Trade cryptocurrencies, stocks, and forex with the world's most advanced trading platform.",
		Markets:      markets,
	},
}

// Lookup returns the brand registered under key (case-insensitive).
func Lookup(key string) (Brand, error) {
	b, ok := brands[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Brand{}, fmt.Errorf("unknown brand %q", key)
	}
	return b, nil
}

// DefaultSettings returns the site settings shown before the backend's
// settings have been loaded.
func (b Brand) DefaultSettings() apiclient.Settings {
	return apiclient.Settings{SiteTitle: b.Name, SupportEmail: b.SupportEmail}
}
