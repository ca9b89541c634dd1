// Package referrers labels referring sites for the dashboard.
package referrers

import (
	"net/url"
	"strings"

	"citewatch/internal/pkg/platforms"
)

// Direct groups visits that arrived without a referrer.
const Direct = "direct"

// Sites that commonly sit in front of AI answers or share them.
var knownReferrers = map[string]string{
	"google.com":           "Google",
	"bing.com":             "Bing",
	"duckduckgo.com":       "DuckDuckGo",
	"kagi.com":             "Kagi",
	"you.com":              "You.com",
	"phind.com":            "Phind",
	"poe.com":              "Poe",
	"meta.ai":              "Meta AI",
	"chat.mistral.ai":      "Le Chat",
	"chat.deepseek.com":    "DeepSeek",
	"grok.com":             "Grok",
	"x.com":                "X/Twitter",
	"t.co":                 "X/Twitter",
	"twitter.com":          "X/Twitter",
	"linkedin.com":         "LinkedIn",
	"lnkd.in":              "LinkedIn",
	"facebook.com":         "Facebook",
	"reddit.com":           "Reddit",
	"youtube.com":          "YouTube",
	"slack.com":            "Slack",
	"discord.com":          "Discord",
	"t.me":                 "Telegram",
	"news.ycombinator.com": "Hacker News",
	"github.com":           "GitHub",
	"stackoverflow.com":    "Stack Overflow",
	"medium.com":           "Medium",
	"substack.com":         "Substack",
	"mail.google.com":      "Gmail",
	"outlook.live.com":     "Outlook",
}

// Hostname extracts the lowercase host of a referrer without "www.".
// Referrers without a scheme are accepted.
func Hostname(referer string) string {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return ""
	}
	if !strings.Contains(referer, "://") {
		referer = "https://" + referer
	}
	parsed, err := url.Parse(referer)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// FriendlyName labels a referrer hostname. AI platforms use their canonical
// name, then known sites and their subdomains, then the bare host.
func FriendlyName(hostname string) string {
	hostname = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(hostname)), "www.")
	if hostname == "" || hostname == Direct {
		return "Direct"
	}

	if def, ok := platforms.MatchDomain(hostname); ok {
		return string(def.Platform)
	}

	// Most specific parent first so mail.google.com beats google.com.
	for domain := hostname; domain != ""; {
		if name, ok := knownReferrers[domain]; ok {
			return name
		}
		dot := strings.IndexByte(domain, '.')
		if dot < 0 {
			break
		}
		domain = domain[dot+1:]
	}

	return hostname
}
