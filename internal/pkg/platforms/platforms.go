// Package platforms holds the allow-list of AI platforms citewatch attributes
// traffic to: their UTM tokens, referrer domains and crawler signatures.
package platforms

import (
	"strings"
	"sync"

	"go.elara.ws/pcre"
)

// Platform is the canonical name of an AI platform.
type Platform string

const (
	ChatGPT          Platform = "ChatGPT"
	Perplexity       Platform = "Perplexity"
	Claude           Platform = "Claude"
	Gemini           Platform = "Gemini"
	BingCopilot      Platform = "BingCopilot"
	GoogleAIOverview Platform = "GoogleAIOverview"
	Unknown          Platform = "Unknown"
)

// Definition describes how a platform announces itself.
type Definition struct {
	Platform Platform
	// UTMSources are values of the utm_source parameter set by the platform.
	UTMSources []string
	// Domains are referrer hostnames; subdomains match too.
	Domains []string
	// Crawlers are PCRE patterns matched against the user agent of the platform's bots.
	Crawlers []string
	// QueryParam is the referrer query parameter carrying the user's prompt, if exposed.
	QueryParam string
}

// Known is the ordered registry. Order decides ties when two definitions
// could match the same signal.
var Known = []Definition{
	{
		Platform:   ChatGPT,
		UTMSources: []string{"chatgpt.com", "chat.openai.com", "openai.com", "chatgpt"},
		Domains:    []string{"chatgpt.com", "chat.openai.com"},
		Crawlers:   []string{`GPTBot`, `ChatGPT-User`, `OAI-SearchBot`},
	},
	{
		Platform:   Perplexity,
		UTMSources: []string{"perplexity.ai", "perplexity"},
		Domains:    []string{"perplexity.ai"},
		Crawlers:   []string{`PerplexityBot`, `Perplexity-User`},
		QueryParam: "q",
	},
	{
		Platform:   Claude,
		UTMSources: []string{"claude.ai", "claude", "anthropic.com"},
		Domains:    []string{"claude.ai"},
		Crawlers:   []string{`ClaudeBot`, `Claude-User`, `Claude-SearchBot`, `anthropic-ai`},
	},
	{
		Platform:   Gemini,
		UTMSources: []string{"gemini.google.com", "gemini", "bard.google.com"},
		Domains:    []string{"gemini.google.com", "bard.google.com"},
		Crawlers:   []string{`Google-Extended`, `Gemini-Deep-Research`},
	},
	{
		Platform:   BingCopilot,
		UTMSources: []string{"copilot.microsoft.com", "copilot", "bing.com/chat"},
		Domains:    []string{"copilot.microsoft.com", "copilot.cloud.microsoft"},
		Crawlers:   []string{`(?i)bingbot.*copilot`, `Copilot`},
	},
	{
		Platform:   GoogleAIOverview,
		UTMSources: []string{"google-ai-overview", "ai-overview"},
		Crawlers:   []string{`Google-CloudVertexBot`},
	},
}

// Names returns every known platform in registry order.
func Names() []Platform {
	names := make([]Platform, 0, len(Known))
	for _, def := range Known {
		names = append(names, def.Platform)
	}
	return names
}

// Lookup finds a platform by name, ignoring case.
func Lookup(name string) (Definition, bool) {
	name = strings.TrimSpace(name)
	for _, def := range Known {
		if strings.EqualFold(string(def.Platform), name) {
			return def, true
		}
	}
	return Definition{}, false
}

// MatchUTMSource returns the platform whose UTM token equals source.
func MatchUTMSource(source string) (Definition, bool) {
	source = normalizeHost(source)
	if source == "" {
		return Definition{}, false
	}
	for _, def := range Known {
		for _, token := range def.UTMSources {
			if source == token {
				return def, true
			}
		}
	}
	return Definition{}, false
}

// MatchDomain returns the platform owning hostname or one of its parent domains.
func MatchDomain(hostname string) (Definition, bool) {
	hostname = normalizeHost(hostname)
	if hostname == "" {
		return Definition{}, false
	}
	for _, def := range Known {
		for _, domain := range def.Domains {
			if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
				return def, true
			}
		}
	}
	return Definition{}, false
}

// MatchCrawler returns the platform whose crawler signature matches userAgent.
func MatchCrawler(userAgent string) (Definition, bool) {
	if userAgent == "" {
		return Definition{}, false
	}
	for _, def := range Known {
		for _, pattern := range def.Crawlers {
			regex, err := signatures.get(pattern)
			if err != nil {
				continue
			}
			if regex.MatchString(userAgent) {
				return def, true
			}
		}
	}
	return Definition{}, false
}

// ExposesQuery reports whether the platform's referrer carries the user's query.
func (d Definition) ExposesQuery() bool {
	return d.QueryParam != ""
}

func normalizeHost(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.TrimPrefix(value, "www.")
}

// regexCache compiles each crawler signature once.
type regexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

var signatures = &regexCache{compiled: make(map[string]*pcre.Regexp)}

func (rc *regexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}
