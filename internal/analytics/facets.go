package analytics

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"citewatch/internal/events"
	"citewatch/internal/pkg/geoip"
	"citewatch/internal/pkg/referrers"
	ua "citewatch/internal/pkg/user_agent"
)

// UnknownCountry groups events without a country code.
const UnknownCountry = "unknown"

// BrowserFacets counts events per parsed browser. The filter's own browser
// and country selections are ignored so every option stays listed.
func (e *Engine) BrowserFacets(ctx context.Context, filter Filter) ([]FacetCount, error) {
	caser := cases.Title(language.AmericanEnglish)
	return e.facets(ctx, filter, func(row events.VisitEvent) string {
		return row.ParsedUserAgent().Browser
	}, func(value string) string {
		return caser.String(value)
	})
}

// CountryFacets counts events per country code, labelled with the country name.
func (e *Engine) CountryFacets(ctx context.Context, filter Filter) ([]FacetCount, error) {
	caser := cases.Upper(language.AmericanEnglish)
	return e.facets(ctx, filter, func(row events.VisitEvent) string {
		if code := row.Country(); code != "" {
			return code
		}
		return UnknownCountry
	}, func(value string) string {
		if value == UnknownCountry {
			return "Unknown"
		}
		name := geoip.CountryName(value)
		if name == value {
			return caser.String(value)
		}
		return name
	})
}

// OSFacets counts events per parsed operating system.
func (e *Engine) OSFacets(ctx context.Context, filter Filter) ([]FacetCount, error) {
	return e.facets(ctx, filter, func(row events.VisitEvent) string {
		return row.ParsedUserAgent().OS
	}, func(value string) string {
		// OS names carry their own casing, e.g. "iOS (iPad)".
		return value
	})
}

// DeviceFacets counts events per device type.
func (e *Engine) DeviceFacets(ctx context.Context, filter Filter) ([]FacetCount, error) {
	caser := cases.Title(language.AmericanEnglish)
	return e.facets(ctx, filter, func(row events.VisitEvent) string {
		return row.ParsedUserAgent().Device
	}, func(value string) string {
		if value == ua.Unknown {
			return "Unknown"
		}
		return caser.String(value)
	})
}

// ReferrerFacets counts events per referring host. Visits without a
// referrer, such as declared or UTM attributed ones, count as direct.
func (e *Engine) ReferrerFacets(ctx context.Context, filter Filter) ([]FacetCount, error) {
	return e.facets(ctx, filter, func(row events.VisitEvent) string {
		if host := referrers.Hostname(events.StringValue(row.Referer)); host != "" {
			return host
		}
		return referrers.Direct
	}, referrers.FriendlyName)
}

func (e *Engine) facets(ctx context.Context, filter Filter, key func(events.VisitEvent) string, label func(string) string) ([]FacetCount, error) {
	filter.Browser = ""
	filter.Country = ""
	rows, err := e.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, row := range rows {
		counts[key(row)]++
	}

	facets := make([]FacetCount, 0, len(counts))
	for value, count := range counts {
		facets = append(facets, FacetCount{Value: value, Label: label(value), Count: count})
	}
	sort.Slice(facets, func(i, j int) bool {
		if facets[i].Count != facets[j].Count {
			return facets[i].Count > facets[j].Count
		}
		return strings.ToLower(facets[i].Value) < strings.ToLower(facets[j].Value)
	})
	return facets, nil
}
