package events

import (
	"net/url"
	"strings"
	"time"

	"citewatch/internal/pkg/geoip"
	"citewatch/internal/pkg/platforms"
)

// VisitRequest is the raw input of one inbound tracking request.
type VisitRequest struct {
	URL       string
	Referer   string
	UserAgent string
	// DeclaredPlatform and DeclaredQuery are what the tracking script reported.
	DeclaredPlatform string
	DeclaredQuery    string
	CountryCode      string
	Timestamp        time.Time
}

// Signal names the request attribute that attributed a visit.
type Signal string

const (
	SignalUTMSource Signal = "utm_source"
	SignalReferer   Signal = "referer"
	SignalDeclared  Signal = "declared_platform"
	SignalCrawler   Signal = "user_agent"
)

// Rule attributes a request to a platform when Match succeeds.
type Rule struct {
	Signal      Signal
	TrafficType TrafficType
	Match       func(req VisitRequest) (platforms.Definition, bool)
}

// Rules are evaluated in order, highest confidence first. A request no rule
// matches is not attributable and is dropped.
var Rules = []Rule{
	{Signal: SignalUTMSource, TrafficType: TrafficTypeCitationClick, Match: matchUTMSource},
	{Signal: SignalReferer, TrafficType: TrafficTypeCitationClick, Match: matchReferer},
	{Signal: SignalDeclared, TrafficType: TrafficTypeCitationClick, Match: matchDeclared},
	{Signal: SignalCrawler, TrafficType: TrafficTypeBotCrawl, Match: matchCrawler},
}

// Classification is the outcome of a successful Classify.
type Classification struct {
	Event  VisitEvent
	Signal Signal
}

// Classify turns a request into an attributed VisitEvent. The boolean is
// false when the request matches no known platform; such traffic must not
// be stored.
func Classify(req VisitRequest) (Classification, bool) {
	for _, rule := range Rules {
		def, ok := rule.Match(req)
		if !ok {
			continue
		}
		return Classification{
			Event:  buildEvent(req, rule.TrafficType, def),
			Signal: rule.Signal,
		}, true
	}
	return Classification{}, false
}

func buildEvent(req VisitRequest, trafficType TrafficType, def platforms.Definition) VisitEvent {
	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	event := VisitEvent{
		Timestamp:   timestamp.UTC(),
		TrafficType: trafficType,
		AIPlatform:  def.Platform,
		URL:         strings.TrimSpace(req.URL),
		Referer:     optionalString(strings.TrimSpace(req.Referer)),
		UserAgent:   req.UserAgent,
		CountryCode: optionalString(geoip.NormalizeCountryCode(req.CountryCode)),
	}
	if event.AIPlatform == "" {
		event.AIPlatform = platforms.Unknown
	}

	if def.ExposesQuery() {
		query := ExtractSearchQuery(req.Referer, def.QueryParam)
		if query == "" {
			query = strings.TrimSpace(req.DeclaredQuery)
		}
		event.SearchQuery = optionalString(query)
	}

	return event
}

// ExtractSearchQuery returns the decoded, trimmed value of param in referer.
func ExtractSearchQuery(referer, param string) string {
	parsed := parseLooseURL(referer)
	if parsed == nil || param == "" {
		return ""
	}
	return strings.TrimSpace(parsed.Query().Get(param))
}

func matchUTMSource(req VisitRequest) (platforms.Definition, bool) {
	parsed := parseLooseURL(req.URL)
	if parsed == nil {
		return platforms.Definition{}, false
	}
	return platforms.MatchUTMSource(parsed.Query().Get("utm_source"))
}

func matchReferer(req VisitRequest) (platforms.Definition, bool) {
	parsed := parseLooseURL(req.Referer)
	if parsed == nil {
		return platforms.Definition{}, false
	}
	return platforms.MatchDomain(parsed.Hostname())
}

func matchDeclared(req VisitRequest) (platforms.Definition, bool) {
	if req.DeclaredPlatform == "" {
		return platforms.Definition{}, false
	}
	return platforms.Lookup(req.DeclaredPlatform)
}

func matchCrawler(req VisitRequest) (platforms.Definition, bool) {
	return platforms.MatchCrawler(req.UserAgent)
}

// parseLooseURL accepts URLs with or without a scheme.
func parseLooseURL(raw string) *url.URL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return parsed
}
