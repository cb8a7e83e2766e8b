package config

import (
	"fmt"
	"sort"
	"strings"
)

// Region is a marketplace and the endpoint host that serves it.
type Region struct {
	Code          string
	Host          string
	MarketplaceID string
}

// Regions lists the known marketplaces by code.
var Regions = map[string]Region{
	"ca": {"ca", "mws.amazonservices.ca", "A2EUQ1WTGCTBG2"},
	"us": {"us", "mws.amazonservices.com", "ATVPDKIKX0DER"},
	"mx": {"mx", "mws.amazonservices.com.mx", "A1AM78C64UM0Y8"},
	"br": {"br", "mws.amazonservices.com", "A2Q3Y263D00KWC"},
	"de": {"de", "mws-eu.amazonservices.com", "A1PA6795UKMFR9"},
	"es": {"es", "mws-eu.amazonservices.com", "A1RKKUPIHCS9HS"},
	"fr": {"fr", "mws-eu.amazonservices.com", "A13V1IB3VIYZZH"},
	"it": {"it", "mws-eu.amazonservices.com", "APJ6JRA9NG5V4"},
	"uk": {"uk", "mws-eu.amazonservices.com", "A1F83G8C2ARO7P"},
	"in": {"in", "mws.amazonservices.in", "A21TJRUUN4KGV"},
	"jp": {"jp", "mws.amazonservices.jp", "A1VC38T7YXB528"},
	"au": {"au", "mws.amazonservices.au", "A39IBJ37TRP1C6"},
	"cn": {"cn", "mws.amazonservices.com.cn", "AAHKV2X7AFYLW"},
}

// LookupRegion returns the region for code (case-insensitive).
func LookupRegion(code string) (Region, error) {
	r, ok := Regions[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Region{}, fmt.Errorf("unknown region %q (known: %s)", code, strings.Join(RegionCodes(), ", "))
	}
	return r, nil
}

// RegionCodes returns the known region codes, sorted.
func RegionCodes() []string {
	codes := make([]string, 0, len(Regions))
	for c := range Regions {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
