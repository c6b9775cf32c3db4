// Package tokens maps well-known mint addresses to display names.
package tokens

import (
	"strings"

	"solexplorer/pkg/config"
)

// TokenInfo is what the address header shows for a known mint.
type TokenInfo struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol,omitempty"`
	Logo   string `json:"logo,omitempty"`
}

// Header is the title block of an address page.
type Header struct {
	Pretitle string `json:"pretitle"`
	Title    string `json:"title"`
	Logo     string `json:"logo,omitempty"`
}

var builtin = map[string]map[string]TokenInfo{
	"mainnet-beta": {
		"So11111111111111111111111111111111111111112":  {Name: "Wrapped SOL", Symbol: "SOL"},
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {Name: "USD Coin", Symbol: "USDC"},
		"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": {Name: "USDT", Symbol: "USDT"},
	},
}

// Registry resolves mints per cluster.
type Registry struct {
	byCluster map[string]map[string]TokenInfo
}

// NewRegistry merges the built-in mints with the tokens configured on each
// cluster. Configured entries win.
func NewRegistry(clusters []config.ClusterConfig) *Registry {
	r := &Registry{byCluster: make(map[string]map[string]TokenInfo)}
	for cluster, mints := range builtin {
		for mint, info := range mints {
			r.add(cluster, mint, info)
		}
	}
	for _, c := range clusters {
		for _, t := range c.Tokens {
			if t.Mint == "" || t.Name == "" {
				continue
			}
			r.add(c.Name, t.Mint, TokenInfo{Name: t.Name, Symbol: t.Symbol, Logo: t.Logo})
		}
	}
	return r
}

func (r *Registry) add(cluster, mint string, info TokenInfo) {
	cluster = strings.ToLower(cluster)
	if r.byCluster[cluster] == nil {
		r.byCluster[cluster] = make(map[string]TokenInfo)
	}
	r.byCluster[cluster][mint] = info
}

// Lookup returns the token registered for address on cluster.
func (r *Registry) Lookup(address, cluster string) (TokenInfo, bool) {
	if r == nil {
		return TokenInfo{}, false
	}
	info, ok := r.byCluster[strings.ToLower(cluster)][address]
	return info, ok
}

// Header returns the token header for known mints, otherwise the generic
// account header.
func (r *Registry) Header(address, cluster string) Header {
	if info, ok := r.Lookup(address, cluster); ok {
		return Header{Pretitle: "Token", Title: info.Name, Logo: info.Logo}
	}
	return Header{Pretitle: "Details", Title: "Account"}
}
