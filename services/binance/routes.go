package binance

import "strings"

// apiGroup identifies a Binance API namespace. Host selection is an
// explicit table keyed by group rather than raw string slicing of the
// path, so a new namespace cannot silently misroute.
type apiGroup int

const (
	groupSpot apiGroup = iota // /api: spot trading and account
	groupSAPI                 // /sapi: margin, sub-account, wallet
	groupUMFutures            // /fapi: USDT-margined futures
	groupCMFutures            // /dapi: coin-margined futures
	groupPAPI                 // /papi: portfolio margin
)

// Default production hosts.
const (
	DefaultSpotHost      = "https://api.binance.com"
	DefaultUMFuturesHost = "https://fapi.binance.com"
	DefaultCMFuturesHost = "https://dapi.binance.com"
	DefaultPAPIHost      = "https://papi.binance.com"
	DefaultStreamHost    = "wss://stream.binance.com:9443"
)

// Hosts is the per-namespace base URL set. SAPI endpoints share the spot
// host upstream, but the mapping stays explicit here.
type Hosts struct {
	Spot      string
	SAPI      string
	UMFutures string
	CMFutures string
	PAPI      string
	Stream    string
}

// DefaultHosts returns the production host table.
func DefaultHosts() Hosts {
	return Hosts{
		Spot:      DefaultSpotHost,
		SAPI:      DefaultSpotHost,
		UMFutures: DefaultUMFuturesHost,
		CMFutures: DefaultCMFuturesHost,
		PAPI:      DefaultPAPIHost,
		Stream:    DefaultStreamHost,
	}
}

func (h Hosts) forGroup(g apiGroup) string {
	switch g {
	case groupSAPI:
		return h.SAPI
	case groupUMFutures:
		return h.UMFutures
	case groupCMFutures:
		return h.CMFutures
	case groupPAPI:
		return h.PAPI
	default:
		return h.Spot
	}
}

// prefixGroups maps the leading path segment to its namespace.
var prefixGroups = map[string]apiGroup{
	"api":  groupSpot,
	"sapi": groupSAPI,
	"fapi": groupUMFutures,
	"dapi": groupCMFutures,
	"papi": groupPAPI,
}

// groupForPath resolves the namespace from the endpoint path. Unknown
// prefixes fall back to the spot host, which matches how callers of the
// previous prefix convention behaved.
func groupForPath(path string) apiGroup {
	trimmed := strings.TrimPrefix(path, "/")
	segment, _, _ := strings.Cut(trimmed, "/")
	if g, ok := prefixGroups[segment]; ok {
		return g
	}
	return groupSpot
}
