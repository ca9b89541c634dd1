package events

import (
	"context"
	"log/slog"

	"citewatch/internal/content"
)

// Publisher forwards recorded events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event VisitEvent) error
}

// Recorder classifies requests and persists the attributable ones.
type Recorder struct {
	store     Store
	resolver  content.Resolver
	publisher Publisher
	logger    *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithResolver links recorded URLs to content entities.
func WithResolver(resolver content.Resolver) RecorderOption {
	return func(r *Recorder) {
		if resolver != nil {
			r.resolver = resolver
		}
	}
}

// WithPublisher forwards stored events.
func WithPublisher(publisher Publisher) RecorderOption {
	return func(r *Recorder) {
		r.publisher = publisher
	}
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store Store, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:    store,
		resolver: content.NopResolver{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stores the request when it is attributable. The boolean reports
// whether a row was written. Store failures are returned; publish failures
// are logged only.
func (r *Recorder) Record(ctx context.Context, req VisitRequest) (*VisitEvent, bool, error) {
	classification, ok := Classify(req)
	if !ok {
		r.logger.Debug("Dropping unattributed visit", slog.String("url", req.URL))
		return nil, false, nil
	}

	event := classification.Event
	if post, found := r.resolver.Resolve(event.URL); found && post.ID != 0 {
		postID := post.ID
		event.PostID = &postID
	}

	if err := r.store.Append(ctx, &event); err != nil {
		r.logger.Error("Failed to record visit",
			slog.String("platform", string(event.AIPlatform)),
			slog.Any("error", err))
		return nil, false, err
	}

	r.logger.Debug("Recorded visit",
		slog.Uint64("id", uint64(event.ID)),
		slog.String("platform", string(event.AIPlatform)),
		slog.String("traffic_type", string(event.TrafficType)),
		slog.String("signal", string(classification.Signal)))

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Warn("Failed to publish visit event",
				slog.Uint64("id", uint64(event.ID)),
				slog.Any("error", err))
		}
	}

	return &event, true, nil
}
