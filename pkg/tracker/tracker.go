// Package tracker delivers citation events to a citewatch server. The
// Negotiator starts knowing nothing about the server, picks the Primary
// JSON API when its health probe answers, and otherwise settles on the
// Fallback form endpoint for the rest of its life.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"citewatch/pkg/respcache"
)

type Transport string

const (
	TransportPrimary  Transport = "primary"
	TransportFallback Transport = "fallback"
)

// State is the transport selection of a Negotiator.
type State int

const (
	StateUndetected State = iota
	StateUsingPrimary
	StateUsingFallback
)

func (s State) String() string {
	switch s {
	case StateUsingPrimary:
		return "using_primary"
	case StateUsingFallback:
		return "using_fallback"
	default:
		return "undetected"
	}
}

const (
	DefaultNamespace    = "citewatch"
	DefaultFallbackPath = "/ajax"
	DefaultProbeTimeout = 3 * time.Second
	DefaultSendTimeout  = 10 * time.Second
	DefaultProbeTTL     = 60 * time.Second

	actionTrackCitation = "track_citation"
	actionPing          = "ping"
	maxBodyBytes        = 64 << 10
)

// Event is one citation to deliver.
type Event struct {
	URL         string `json:"url"`
	Platform    string `json:"platform"`
	Referer     string `json:"referer,omitempty"`
	SearchQuery string `json:"search_query,omitempty"`
}

// Receipt describes a successful delivery.
type Receipt struct {
	Transport  Transport `json:"transport"`
	StatusCode int       `json:"status_code"`
	Recorded   bool      `json:"recorded"`
	// FellBack is set when Primary failed and the event was replayed via Fallback.
	FellBack bool `json:"fell_back"`
}

// ProbeResult is the memoized outcome of a health probe.
type ProbeResult struct {
	OK         bool
	StatusCode int
	Err        string
}

type Config struct {
	BaseURL      string
	Namespace    string
	FallbackPath string
	ProbeTimeout time.Duration
	SendTimeout  time.Duration
	UserAgent    string
	HTTPClient   *http.Client
	// HealthCache memoizes probe results. Several negotiators may share one.
	HealthCache *respcache.Cache[ProbeResult]
	Logger      *slog.Logger
}

// Negotiator is safe for concurrent use; state transitions are serialized.
type Negotiator struct {
	mu    sync.Mutex
	state State

	baseURL      string
	namespace    string
	fallbackPath string
	probeTimeout time.Duration
	sendTimeout  time.Duration
	userAgent    string
	client       *http.Client
	healthCache  *respcache.Cache[ProbeResult]
	logger       *slog.Logger
}

func New(cfg Config) (*Negotiator, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	n := &Negotiator{
		state:        StateUndetected,
		baseURL:      base.String(),
		namespace:    strings.Trim(cfg.Namespace, "/"),
		fallbackPath: cfg.FallbackPath,
		probeTimeout: cfg.ProbeTimeout,
		sendTimeout:  cfg.SendTimeout,
		userAgent:    cfg.UserAgent,
		client:       cfg.HTTPClient,
		healthCache:  cfg.HealthCache,
		logger:       cfg.Logger,
	}
	if n.namespace == "" {
		n.namespace = DefaultNamespace
	}
	if n.fallbackPath == "" {
		n.fallbackPath = DefaultFallbackPath
	}
	if !strings.HasPrefix(n.fallbackPath, "/") {
		n.fallbackPath = "/" + n.fallbackPath
	}
	if n.probeTimeout <= 0 {
		n.probeTimeout = DefaultProbeTimeout
	}
	if n.sendTimeout <= 0 {
		n.sendTimeout = DefaultSendTimeout
	}
	if n.userAgent == "" {
		n.userAgent = "citewatch-tracker/1.0"
	}
	if n.client == nil {
		// No cookie jar: probes and sends never carry credentials.
		n.client = &http.Client{}
	}
	if n.healthCache == nil {
		n.healthCache = respcache.New[ProbeResult](respcache.WithDefaultTTL(DefaultProbeTTL))
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n, nil
}

// State returns the current transport selection.
func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Negotiator) healthURL() string {
	return n.baseURL + "/" + n.namespace + "/v1/health"
}

func (n *Negotiator) primaryURL() string {
	return n.baseURL + "/" + n.namespace + "/v1/track-citation"
}

func (n *Negotiator) fallbackURL() string {
	return n.baseURL + n.fallbackPath
}

// Send delivers event. The first call probes Primary; later calls reuse the
// outcome. A Primary failure switches the negotiator to Fallback for good
// and replays event there once. A Fallback failure is returned as a
// *DeliveryError matching ErrFallbackFailed.
func (n *Negotiator) Send(ctx context.Context, event Event) (*Receipt, error) {
	state := n.detect(ctx)
	if state == StateUndetected {
		return nil, &DeliveryError{Transport: TransportPrimary, Message: "health probe abandoned", Err: ctx.Err()}
	}

	if state == StateUsingPrimary {
		receipt, err := n.sendPrimary(ctx, event)
		if err == nil {
			return receipt, nil
		}
		// A caller that gives up says nothing about Primary
		if ctx.Err() != nil {
			return nil, &DeliveryError{Transport: TransportPrimary, Err: ctx.Err()}
		}
		n.logger.Warn("Primary delivery failed, replaying via fallback", slog.Any("error", err))
		n.transition(StateUsingFallback)

		receipt, err = n.sendFallback(ctx, event)
		if err != nil {
			return nil, err
		}
		receipt.FellBack = true
		return receipt, nil
	}

	return n.sendFallback(ctx, event)
}

// detect probes Primary once per negotiator. The lock is held during the
// probe so concurrent first sends share one probe.
func (n *Negotiator) detect(ctx context.Context) State {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateUndetected {
		return n.state
	}

	result := n.probe(ctx)
	if !result.OK && ctx.Err() != nil {
		return StateUndetected
	}
	if result.OK {
		n.state = StateUsingPrimary
	} else {
		n.state = StateUsingFallback
		n.logger.Info("Primary transport unavailable, using fallback",
			slog.Int("status", result.StatusCode),
			slog.String("error", result.Err))
	}
	return n.state
}

func (n *Negotiator) transition(to State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = to
}

// probe consults the health cache before calling the health endpoint.
func (n *Negotiator) probe(ctx context.Context) ProbeResult {
	key := n.healthURL()
	if cached, ok := n.healthCache.Get(key); ok {
		return cached
	}
	result, _ := n.probeHealth(ctx)
	if !result.OK && ctx.Err() != nil {
		return result
	}
	n.healthCache.Set(key, result)
	return result
}

func (n *Negotiator) probeHealth(ctx context.Context) (ProbeResult, time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, n.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.healthURL(), nil)
	if err != nil {
		return ProbeResult{Err: err.Error()}, 0
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", n.userAgent)

	start := time.Now()
	resp, err := n.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return ProbeResult{Err: err.Error()}, latency
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if !isSuccess(resp.StatusCode) {
		return ProbeResult{StatusCode: resp.StatusCode, Err: http.StatusText(resp.StatusCode)}, latency
	}
	return ProbeResult{OK: true, StatusCode: resp.StatusCode}, latency
}

func (n *Negotiator) sendPrimary(ctx context.Context, event Event) (*Receipt, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, &DeliveryError{Transport: TransportPrimary, Err: fmt.Errorf("failed to encode event: %w", err)}
	}
	return n.do(ctx, TransportPrimary, n.primaryURL(), "application/json", body)
}

func (n *Negotiator) sendFallback(ctx context.Context, event Event) (*Receipt, error) {
	form := url.Values{}
	form.Set("action", actionTrackCitation)
	form.Set("url", event.URL)
	form.Set("platform", event.Platform)
	if event.Referer != "" {
		form.Set("referer", event.Referer)
	}
	if event.SearchQuery != "" {
		form.Set("search_query", event.SearchQuery)
	}
	return n.do(ctx, TransportFallback, n.fallbackURL(), "application/x-www-form-urlencoded", []byte(form.Encode()))
}

type ingestResponse struct {
	Success  bool   `json:"success"`
	Recorded bool   `json:"recorded"`
	Message  string `json:"message"`
}

func (n *Negotiator) do(ctx context.Context, transport Transport, target, contentType string, body []byte) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, &DeliveryError{Transport: transport, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, &DeliveryError{Transport: transport, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	var parsed ingestResponse
	_ = json.Unmarshal(raw, &parsed)

	if !isSuccess(resp.StatusCode) {
		message := parsed.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &DeliveryError{Transport: transport, StatusCode: resp.StatusCode, Message: message}
	}

	return &Receipt{
		Transport:  transport,
		StatusCode: resp.StatusCode,
		Recorded:   parsed.Recorded,
	}, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
