package tracker

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TransportReport is the availability of one transport.
type TransportReport struct {
	Transport  Transport     `json:"transport"`
	URL        string        `json:"url"`
	Available  bool          `json:"available"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
}

// ConnectionReport is the result of TestConnection.
type ConnectionReport struct {
	State    State           `json:"-"`
	Primary  TransportReport `json:"primary"`
	Fallback TransportReport `json:"fallback"`
}

// TestConnection probes both transports fresh. It neither reads nor writes
// the health cache and leaves the negotiator state untouched.
func (n *Negotiator) TestConnection(ctx context.Context) ConnectionReport {
	result, latency := n.probeHealth(ctx)
	primary := TransportReport{
		Transport:  TransportPrimary,
		URL:        n.healthURL(),
		Available:  result.OK,
		StatusCode: result.StatusCode,
		Latency:    latency,
		Error:      result.Err,
	}

	return ConnectionReport{
		State:    n.State(),
		Primary:  primary,
		Fallback: n.pingFallback(ctx),
	}
}

func (n *Negotiator) pingFallback(ctx context.Context) TransportReport {
	report := TransportReport{Transport: TransportFallback, URL: n.fallbackURL()}

	ctx, cancel := context.WithTimeout(ctx, n.probeTimeout)
	defer cancel()

	form := url.Values{"action": {actionPing}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, report.URL, strings.NewReader(form.Encode()))
	if err != nil {
		report.Error = err.Error()
		return report
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", n.userAgent)

	start := time.Now()
	resp, err := n.client.Do(req)
	report.Latency = time.Since(start)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	report.StatusCode = resp.StatusCode
	report.Available = isSuccess(resp.StatusCode)
	if !report.Available {
		report.Error = http.StatusText(resp.StatusCode)
	}
	return report
}
