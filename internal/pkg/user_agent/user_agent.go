package user_agent

import "strings"

// Device types
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
)

// Unknown is returned for a browser or OS no rule recognizes.
const Unknown = "Unknown"

type UserAgent struct {
	UserAgent string
	Browser   string
	OS        string
	Device    string
	Icon      string
}

// Rule maps a user agent predicate to a result. Rules are evaluated top to
// bottom and the first match wins, so overlapping tokens must be ordered
// most specific first.
type Rule struct {
	Match  func(ua string) bool
	Result string
}

func contains(tokens ...string) func(string) bool {
	return func(ua string) bool {
		for _, token := range tokens {
			if strings.Contains(ua, token) {
				return true
			}
		}
		return false
	}
}

// BrowserRules: Edge and Opera UAs contain "Chrome", and Chrome UAs contain "Safari".
var BrowserRules = []Rule{
	{Match: contains("Edg"), Result: "Edge"},
	{Match: contains("OPR", "Opera"), Result: "Opera"},
	{Match: contains("Chrome"), Result: "Chrome"},
	{Match: contains("Safari"), Result: "Safari"},
	{Match: contains("Firefox"), Result: "Firefox"},
}

// OSRules: Android UAs contain "Linux", and iOS UAs contain "like Mac OS X".
var OSRules = []Rule{
	{Match: contains("Windows NT 10"), Result: "Windows 10"},
	{Match: contains("Windows NT 11"), Result: "Windows 11"},
	{Match: contains("Windows"), Result: "Windows"},
	{Match: contains("Android"), Result: "Android"},
	{Match: contains("iPhone"), Result: "iOS (iPhone)"},
	{Match: contains("iPad"), Result: "iOS (iPad)"},
	{Match: contains("Mac OS X", "Macintosh"), Result: "macOS"},
	{Match: contains("Linux"), Result: "Linux"},
}

// DeviceRules is checked independently of OSRules. An iPad UA without the
// "Mobile" token is reported as desktop even though its OS is iOS (iPad).
var DeviceRules = []Rule{
	{Match: contains("Mobile", "iPhone", "Android"), Result: DeviceMobile},
}

var deviceIcons = map[string]string{
	DeviceMobile:  "📱",
	DeviceDesktop: "💻",
}

// Evaluate returns the result of the first matching rule, or fallback.
func Evaluate(rules []Rule, ua, fallback string) string {
	for _, rule := range rules {
		if rule.Match(ua) {
			return rule.Result
		}
	}
	return fallback
}

// ParseUserAgent derives browser, OS and device facts. It never fails:
// unrecognized input degrades to Unknown and desktop.
func ParseUserAgent(userAgent string) UserAgent {
	device := Evaluate(DeviceRules, userAgent, DeviceDesktop)
	return UserAgent{
		UserAgent: userAgent,
		Browser:   Evaluate(BrowserRules, userAgent, Unknown),
		OS:        Evaluate(OSRules, userAgent, Unknown),
		Device:    device,
		Icon:      deviceIcons[device],
	}
}
