package user_agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"citewatch/internal/pkg/user_agent"
)

const (
	chromeWindows  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	edgeWindows    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.51"
	safariMac      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"
	firefoxLinux   = "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0"
	chromeAndroid  = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36"
	safariIPhone   = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	safariIPad     = "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/604.1"
	operaWindows   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 OPR/109.0.0.0"
	windows7Chrome = "Mozilla/5.0 (Windows NT 6.1; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/109.0.0.0 Safari/537.36"
)

func TestParseUserAgent(t *testing.T) {
	testCases := []struct {
		name            string
		userAgent       string
		expectedBrowser string
		expectedOS      string
		expectedDevice  string
	}{
		{"Chrome on Windows", chromeWindows, "Chrome", "Windows 10", user_agent.DeviceDesktop},
		{"Edge on Windows", edgeWindows, "Edge", "Windows 10", user_agent.DeviceDesktop},
		{"Opera on Windows", operaWindows, "Opera", "Windows 10", user_agent.DeviceDesktop},
		{"Chrome on Windows 7", windows7Chrome, "Chrome", "Windows", user_agent.DeviceDesktop},
		{"Safari on macOS", safariMac, "Safari", "macOS", user_agent.DeviceDesktop},
		{"Firefox on Linux", firefoxLinux, "Firefox", "Linux", user_agent.DeviceDesktop},
		{"Chrome on Android", chromeAndroid, "Chrome", "Android", user_agent.DeviceMobile},
		{"Safari on iPhone", safariIPhone, "Safari", "iOS (iPhone)", user_agent.DeviceMobile},
		{"empty", "", user_agent.Unknown, user_agent.Unknown, user_agent.DeviceDesktop},
		{"curl", "curl/8.4.0", user_agent.Unknown, user_agent.Unknown, user_agent.DeviceDesktop},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := user_agent.ParseUserAgent(tc.userAgent)

			assert.Equal(t, tc.expectedBrowser, result.Browser)
			assert.Equal(t, tc.expectedOS, result.OS)
			assert.Equal(t, tc.expectedDevice, result.Device)
			assert.Equal(t, tc.userAgent, result.UserAgent)
			assert.NotEmpty(t, result.Icon)
		})
	}
}

func TestEdgeNeverResolvesToChrome(t *testing.T) {
	for _, ua := range []string{
		edgeWindows,
		"Mozilla/5.0 (Linux; Android 10; HD1913) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36 EdgA/124.0.2478.64",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
	} {
		assert.Equal(t, "Edge", user_agent.ParseUserAgent(ua).Browser, ua)
	}
}

func TestAndroidNeverResolvesToLinux(t *testing.T) {
	for _, ua := range []string{
		chromeAndroid,
		"Mozilla/5.0 (Linux; U; Android 4.0.3; ko-kr; LG-L160L Build/IML74K) AppleWebkit/534.30 (KHTML, like Gecko) Version/4.0 Mobile Safari/534.30",
	} {
		assert.Equal(t, "Android", user_agent.ParseUserAgent(ua).OS, ua)
	}
}

// An iPad without the "Mobile" token reports desktop while its OS is iOS (iPad).
// The two checks are independent and this disagreement is kept as-is.
func TestIPadDeviceDisagreesWithOS(t *testing.T) {
	result := user_agent.ParseUserAgent(safariIPad)

	assert.Equal(t, "iOS (iPad)", result.OS)
	assert.Equal(t, user_agent.DeviceDesktop, result.Device)
	assert.Equal(t, "💻", result.Icon)
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	rules := []user_agent.Rule{
		{Match: func(ua string) bool { return len(ua) > 0 }, Result: "first"},
		{Match: func(ua string) bool { return true }, Result: "second"},
	}

	assert.Equal(t, "first", user_agent.Evaluate(rules, "x", "none"))
	assert.Equal(t, "second", user_agent.Evaluate(rules, "", "none"))
	assert.Equal(t, "none", user_agent.Evaluate(nil, "x", "none"))
}
