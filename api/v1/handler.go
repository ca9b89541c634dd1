package v1

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"citewatch/internal/analytics"
	"citewatch/internal/events"
	"citewatch/internal/pkg/geoip"
	"citewatch/internal/pkg/platforms"
	"citewatch/internal/timeframe"
)

const (
	actionTrackCitation = "track_citation"
	actionPing          = "ping"

	errInvalidRequest = "Invalid request"
	errMissingURL     = "url is required and must be an absolute http(s) URL"
	errRecordFailed   = "Failed to record citation"

	maxURLLength    = 2048
	maxStatsLimit   = 100
	maxStatsDays    = 365
	maxStatsWeeks   = 52
	healthDBTimeout = 2 * time.Second
)

// TrackCitationParams is the payload of the primary JSON endpoint.
type TrackCitationParams struct {
	URL         string `json:"url"`
	Platform    string `json:"platform"`
	Referer     string `json:"referer"`
	SearchQuery string `json:"search_query"`
}

type fallbackParams struct {
	Action      string `form:"action"`
	URL         string `form:"url"`
	Platform    string `form:"platform"`
	Referer     string `form:"referer"`
	SearchQuery string `form:"search_query"`
}

func (p fallbackParams) citation() TrackCitationParams {
	return TrackCitationParams{URL: p.URL, Platform: p.Platform, Referer: p.Referer, SearchQuery: p.SearchQuery}
}

// EventStore is the slice of the event store the handlers need.
type EventStore interface {
	CountEvents(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// HandlerOptions wires a Handler.
type HandlerOptions struct {
	Recorder      *events.Recorder
	Engine        *analytics.Engine
	Store         EventStore
	Namespace     string
	Version       string
	BrokerEnabled bool
	Logger        *slog.Logger
	Clock         timeframe.TimeProvider
}

// Handler serves the ingestion, health, diagnostics and stats endpoints.
type Handler struct {
	recorder      *events.Recorder
	engine        *analytics.Engine
	store         EventStore
	parser        *timeframe.TimeFrameParser
	clock         timeframe.TimeProvider
	namespace     string
	version       string
	brokerEnabled bool
	logger        *slog.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	clock := opts.Clock
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		recorder:      opts.Recorder,
		engine:        opts.Engine,
		store:         opts.Store,
		parser:        timeframe.NewTimeFrameParser(clock),
		clock:         clock,
		namespace:     opts.Namespace,
		version:       version,
		brokerEnabled: opts.BrokerEnabled,
		logger:        logger,
	}
}

// TrackCitation is the primary JSON ingestion endpoint.
func (h *Handler) TrackCitation(c *fiber.Ctx) error {
	var params TrackCitationParams
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		h.logger.Debug("Failed to parse citation payload", slog.Any("error", err))
		return failure(c, http.StatusBadRequest, errInvalidRequest)
	}
	return h.record(c, params, "primary")
}

// Fallback is the form-post endpoint used when the JSON route is blocked.
func (h *Handler) Fallback(c *fiber.Ctx) error {
	var params fallbackParams
	if err := c.BodyParser(&params); err != nil {
		h.logger.Debug("Failed to parse fallback form", slog.Any("error", err))
		return failure(c, http.StatusBadRequest, errInvalidRequest)
	}

	switch strings.TrimSpace(params.Action) {
	case actionTrackCitation:
		return h.record(c, params.citation(), "fallback")
	case actionPing:
		return c.JSON(fiber.Map{
			"success":   true,
			"message":   "pong",
			"timestamp": h.clock.Now(time.UTC),
		})
	default:
		return failure(c, http.StatusBadRequest, "Unknown action")
	}
}

func (h *Handler) record(c *fiber.Ctx, params TrackCitationParams, transport string) error {
	if !validPageURL(params.URL) {
		return failure(c, http.StatusBadRequest, errMissingURL)
	}

	req := events.VisitRequest{
		URL:              strings.TrimSpace(params.URL),
		Referer:          strings.TrimSpace(params.Referer),
		UserAgent:        requestUserAgent(c),
		DeclaredPlatform: strings.TrimSpace(params.Platform),
		DeclaredQuery:    strings.TrimSpace(params.SearchQuery),
		CountryCode:      requestCountry(c),
		Timestamp:        h.clock.Now(time.UTC),
	}

	event, recorded, err := h.recorder.Record(c.UserContext(), req)
	if err != nil {
		h.logger.Error("Failed to record citation",
			slog.String("transport", transport),
			slog.Any("error", err))
		return failure(c, http.StatusInternalServerError, errRecordFailed)
	}

	if recorded {
		h.logger.Info("Recorded citation",
			slog.String("transport", transport),
			slog.String("platform", string(event.AIPlatform)),
			slog.String("traffic_type", string(event.TrafficType)))
	}

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"success":  true,
		"recorded": recorded,
	})
}

// Health answers the client probe. It stays 200 while the process is up;
// db_status tells whether writes can succeed.
func (h *Handler) Health(c *fiber.Ctx) error {
	status, dbStatus := "ok", "ok"
	if err := h.pingStore(c.UserContext()); err != nil {
		h.logger.Warn("Health check database ping failed", slog.Any("error", err))
		status, dbStatus = "degraded", "unavailable"
	}
	return c.JSON(fiber.Map{
		"status":    status,
		"timestamp": h.clock.Now(time.UTC),
		"db_status": dbStatus,
	})
}

func (h *Handler) pingStore(ctx context.Context) error {
	if h.store == nil {
		return events.ErrStoreUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, healthDBTimeout)
	defer cancel()
	return h.store.Ping(ctx)
}

// Diagnostics reports environment facts for troubleshooting installs.
func (h *Handler) Diagnostics(c *fiber.Ctx) error {
	ctx := c.UserContext()

	dbStatus := "ok"
	var eventCount int64
	if err := h.pingStore(ctx); err != nil {
		dbStatus = "unavailable"
	} else if count, err := h.store.CountEvents(ctx); err != nil {
		h.logger.Warn("Failed to count events for diagnostics", slog.Any("error", err))
		dbStatus = "error"
	} else {
		eventCount = count
	}

	return c.JSON(fiber.Map{
		"version":        h.version,
		"go_version":     runtime.Version(),
		"namespace":      h.namespace,
		"db_status":      dbStatus,
		"event_count":    eventCount,
		"geoip":          geoip.Available(),
		"broker_enabled": h.brokerEnabled,
		"platforms":      platforms.Names(),
		"server_time":    h.clock.Now(time.UTC),
	})
}

// Stats returns the dashboard report, built from the stored events on
// every request.
func (h *Handler) Stats(c *fiber.Ctx) error {
	params, err := h.parseReportParams(c)
	if err != nil {
		return failure(c, http.StatusBadRequest, err.Error())
	}

	report, err := h.engine.BuildReport(c.UserContext(), params)
	if err != nil {
		h.logger.Error("Failed to build stats report", slog.Any("error", err))
		return failure(c, http.StatusInternalServerError, "Failed to build report")
	}
	body, err := json.Marshal(report)
	if err != nil {
		return failure(c, http.StatusInternalServerError, "Failed to encode report")
	}

	etag := generateETag(body)
	if c.Get(fiber.HeaderIfNoneMatch) == etag {
		return c.SendStatus(http.StatusNotModified)
	}
	c.Set(fiber.HeaderETag, etag)
	c.Set(fiber.HeaderCacheControl, "private, no-cache")
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

func (h *Handler) parseReportParams(c *fiber.Ctx) (analytics.ReportParams, error) {
	params := analytics.ReportParams{
		Days:  c.QueryInt("days", analytics.DefaultTrendDays),
		Weeks: c.QueryInt("weeks", analytics.DefaultTrendWeeks),
		Limit: c.QueryInt("limit", analytics.DefaultTopPages),
	}
	switch {
	case params.Days < 1 || params.Days > maxStatsDays:
		return params, errors.New("days must be between 1 and 365")
	case params.Weeks < 1 || params.Weeks > maxStatsWeeks:
		return params, errors.New("weeks must be between 1 and 52")
	case params.Limit < 1 || params.Limit > maxStatsLimit:
		return params, errors.New("limit must be between 1 and 100")
	}

	if name := c.Query("platform"); name != "" {
		def, ok := platforms.Lookup(name)
		if !ok {
			return params, errors.New("unknown platform: " + name)
		}
		params.Filter.Platform = def.Platform
	}
	if trafficType := events.TrafficType(c.Query("traffic_type")); trafficType != "" {
		if !trafficType.Valid() {
			return params, errors.New("unknown traffic_type: " + string(trafficType))
		}
		params.Filter.TrafficType = trafficType
	}
	params.Filter.Browser = strings.TrimSpace(c.Query("browser"))
	if country := c.Query("country"); country != "" {
		params.Filter.Country = geoip.NormalizeCountryCode(country)
		if params.Filter.Country == "" {
			return params, errors.New("country must be a two letter code")
		}
	}

	from, to := c.Query("from"), c.Query("to")
	if from != "" || to != "" {
		tf, err := h.parser.ParseTimeFrame(timeframe.TimeFrameParserParams{FromDate: from, ToDate: to})
		if err != nil {
			return params, err
		}
		params.Filter.From, params.Filter.To = tf.From, tf.To
	}
	return params, nil
}

func validPageURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxURLLength {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}

func failure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
