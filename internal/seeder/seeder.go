// Package seeder fills a database with realistic demo citation traffic.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"citewatch/internal/events"
)

// Options controls what Run generates.
type Options struct {
	// Site is the origin whose pages are visited, e.g. https://example.com.
	Site string
	// Visits is the number of requests generated. Unattributable ones are
	// dropped by the classifier, so fewer rows are written.
	Visits int
	// Days spreads visits over this many days ending now.
	Days int
	// Seed makes runs reproducible. Zero picks a random seed.
	Seed uint64
	Now  func() time.Time
}

// Result summarizes a run.
type Result struct {
	Generated int
	Recorded  int
	Dropped   int
}

// Seeder sends generated visits through a Recorder so rows are classified
// exactly like live traffic.
type Seeder struct {
	recorder *events.Recorder
	logger   *slog.Logger
}

func NewSeeder(recorder *events.Recorder, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{recorder: recorder, logger: logger}
}

var pagePaths = []string{
	"/",
	"/pricing",
	"/blog/hvac-maintenance-checklist",
	"/blog/best-crm-for-startups",
	"/blog/how-to-choose-a-heat-pump",
	"/docs/getting-started",
	"/docs/api",
	"/compare/alternatives",
}

var prompts = []string{
	"best crm for startups",
	"how often should i service my hvac",
	"heat pump vs furnace cost",
	"alternatives to salesforce",
	"getting started api docs",
}

var browsers = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
}

var crawlers = []string{
	"Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko); compatible; GPTBot/1.2; +https://openai.com/gptbot",
	"Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko); compatible; PerplexityBot/1.0; +https://perplexity.ai/perplexitybot",
	"Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko); compatible; ClaudeBot/1.0; +claudebot@anthropic.com",
}

var countries = []string{"US", "US", "US", "GB", "DE", "FR", "CA", "IN", "BR", ""}

// scenario builds one visit. Weights approximate what a small content site sees.
type scenario struct {
	weight int
	build  func(r *rand.Rand, page string) events.VisitRequest
}

var scenarios = []scenario{
	{weight: 30, build: func(r *rand.Rand, page string) events.VisitRequest {
		return events.VisitRequest{URL: page, Referer: "https://chatgpt.com/"}
	}},
	{weight: 10, build: func(r *rand.Rand, page string) events.VisitRequest {
		return events.VisitRequest{URL: withUTM(page, "chatgpt.com")}
	}},
	{weight: 15, build: func(r *rand.Rand, page string) events.VisitRequest {
		q := url.QueryEscape(pick(r, prompts))
		return events.VisitRequest{URL: page, Referer: "https://www.perplexity.ai/search?q=" + q}
	}},
	{weight: 8, build: func(r *rand.Rand, page string) events.VisitRequest {
		return events.VisitRequest{URL: page, Referer: "https://claude.ai/"}
	}},
	{weight: 8, build: func(r *rand.Rand, page string) events.VisitRequest {
		return events.VisitRequest{URL: page, Referer: "https://gemini.google.com/app"}
	}},
	{weight: 5, build: func(r *rand.Rand, page string) events.VisitRequest {
		return events.VisitRequest{URL: page, Referer: "https://copilot.microsoft.com/"}
	}},
	{weight: 4, build: func(r *rand.Rand, page string) events.VisitRequest {
		return events.VisitRequest{URL: page, DeclaredPlatform: "GoogleAIOverview", DeclaredQuery: pick(r, prompts)}
	}},
	{weight: 10, build: func(r *rand.Rand, page string) events.VisitRequest {
		return events.VisitRequest{URL: page, UserAgent: pick(r, crawlers)}
	}},
	// Ordinary traffic the classifier must drop.
	{weight: 10, build: func(r *rand.Rand, page string) events.VisitRequest {
		return events.VisitRequest{URL: page, Referer: "https://www.google.com/"}
	}},
}

// Run generates opts.Visits requests and records them.
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	site, err := url.Parse(strings.TrimRight(opts.Site, "/"))
	if err != nil || site.Host == "" {
		return Result{}, fmt.Errorf("invalid site %q", opts.Site)
	}
	if opts.Visits <= 0 {
		return Result{}, fmt.Errorf("visits must be positive: %d", opts.Visits)
	}
	if opts.Days <= 0 {
		opts.Days = 30
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	r := rand.New(rand.NewPCG(seed, seed))
	now := opts.Now().UTC()
	window := int64(opts.Days) * int64(24*time.Hour/time.Second)

	start := time.Now()
	s.logger.Info("Seeding citation traffic",
		slog.String("site", site.String()),
		slog.Int("visits", opts.Visits),
		slog.Int("days", opts.Days),
		slog.Uint64("seed", seed))

	var result Result
	for i := 0; i < opts.Visits; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page := site.String() + pick(r, pagePaths)
		req := pickScenario(r).build(r, page)
		if req.UserAgent == "" {
			req.UserAgent = pick(r, browsers)
		}
		req.CountryCode = pick(r, countries)
		req.Timestamp = now.Add(-time.Duration(r.Int64N(window)) * time.Second)

		result.Generated++
		_, recorded, err := s.recorder.Record(ctx, req)
		if err != nil {
			return result, fmt.Errorf("failed to record seeded visit: %w", err)
		}
		if recorded {
			result.Recorded++
		} else {
			result.Dropped++
		}
	}

	s.logger.Info("Seeding completed",
		slog.Int("recorded", result.Recorded),
		slog.Int("dropped", result.Dropped),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

func pickScenario(r *rand.Rand) scenario {
	total := 0
	for _, sc := range scenarios {
		total += sc.weight
	}
	n := r.IntN(total)
	for _, sc := range scenarios {
		if n < sc.weight {
			return sc
		}
		n -= sc.weight
	}
	return scenarios[len(scenarios)-1]
}

func pick(r *rand.Rand, values []string) string {
	return values[r.IntN(len(values))]
}

func withUTM(page, source string) string {
	return page + "?utm_source=" + url.QueryEscape(source) + "&utm_medium=referral"
}
