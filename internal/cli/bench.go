package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"citewatch/pkg/respcache"
	"citewatch/pkg/tracker"
)

// Rotated through by index so runs are reproducible. The last sample has
// no AI signal and is expected to be dropped by the server.
var benchSamples = []tracker.Event{
	{Referer: "https://chatgpt.com/"},
	{Referer: "https://www.perplexity.ai/search?q=best+crm+for+startups"},
	{Platform: "Claude"},
	{Referer: "https://gemini.google.com/app"},
	{Platform: "BingCopilot", Referer: "https://copilot.microsoft.com/"},
	{Referer: "https://www.google.com/"},
}

type benchResult struct {
	latency   time.Duration
	transport tracker.Transport
	recorded  bool
	err       error
}

type benchSummary struct {
	Requests   int                       `json:"requests"`
	Succeeded  int                       `json:"succeeded"`
	Failed     int                       `json:"failed"`
	Recorded   int                       `json:"recorded"`
	Transports map[tracker.Transport]int `json:"transports"`
	Duration   time.Duration             `json:"duration"`
	RPS        float64                   `json:"rps"`
	Min        time.Duration             `json:"min"`
	Avg        time.Duration             `json:"avg"`
	P50        time.Duration             `json:"p50"`
	P95        time.Duration             `json:"p95"`
	P99        time.Duration             `json:"p99"`
	Max        time.Duration             `json:"max"`
	Errors     map[string]int            `json:"errors,omitempty"`
}

// Execute implements the go-flags Commander interface for BenchCommand.
func (c *BenchCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.run(ctx)
}

func (c *BenchCommand) run(ctx context.Context) error {
	if c.Concurrency < 1 || c.Requests < 1 {
		return fmt.Errorf("--concurrency and --requests must be positive")
	}
	site, err := url.Parse(strings.TrimRight(c.Site, "/"))
	if err != nil || site.Host == "" {
		return fmt.Errorf("invalid --site %q", c.Site)
	}

	// One probe result is shared by every client.
	healthCache := respcache.New[tracker.ProbeResult](respcache.WithDefaultTTL(tracker.DefaultProbeTTL))
	defer healthCache.Close()

	negotiators := make([]*tracker.Negotiator, c.Concurrency)
	for i := range negotiators {
		n, err := tracker.New(tracker.Config{
			BaseURL:      c.globals.BaseURL,
			Namespace:    c.globals.Namespace,
			FallbackPath: c.globals.FallbackPath,
			SendTimeout:  c.globals.Timeout,
			UserAgent:    "citectl-bench",
			HealthCache:  healthCache,
			Logger:       c.globals.logger(),
		})
		if err != nil {
			return err
		}
		negotiators[i] = n
	}

	jobs := make(chan int)
	results := make(chan benchResult, c.Requests)
	var wg sync.WaitGroup

	start := time.Now()
	for _, n := range negotiators {
		wg.Add(1)
		go func(n *tracker.Negotiator) {
			defer wg.Done()
			for i := range jobs {
				results <- sendSample(ctx, n, site, i)
			}
		}(n)
	}

feed:
	for i := 0; i < c.Requests; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	summary := summarize(results, time.Since(start))

	if c.globals.JSON {
		return writeJSON(c.out, summary)
	}
	printBenchSummary(c, summary)
	return nil
}

func sendSample(ctx context.Context, n *tracker.Negotiator, site *url.URL, i int) benchResult {
	event := benchSamples[i%len(benchSamples)]
	event.URL = fmt.Sprintf("%s/blog/post-%d", site.String(), i%20)

	start := time.Now()
	receipt, err := n.Send(ctx, event)
	result := benchResult{latency: time.Since(start), err: err}
	if receipt != nil {
		result.transport = receipt.Transport
		result.recorded = receipt.Recorded
	}
	return result
}

func summarize(results <-chan benchResult, elapsed time.Duration) benchSummary {
	summary := benchSummary{
		Transports: make(map[tracker.Transport]int),
		Errors:     make(map[string]int),
		Duration:   elapsed,
	}

	var latencies []time.Duration
	var total time.Duration
	for r := range results {
		summary.Requests++
		latencies = append(latencies, r.latency)
		total += r.latency
		if r.err != nil {
			summary.Failed++
			summary.Errors[r.err.Error()]++
			continue
		}
		summary.Succeeded++
		summary.Transports[r.transport]++
		if r.recorded {
			summary.Recorded++
		}
	}

	if summary.Requests == 0 {
		return summary
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	summary.Min = latencies[0]
	summary.Max = latencies[len(latencies)-1]
	summary.Avg = total / time.Duration(len(latencies))
	summary.P50 = percentile(latencies, 50)
	summary.P95 = percentile(latencies, 95)
	summary.P99 = percentile(latencies, 99)
	if elapsed > 0 {
		summary.RPS = float64(summary.Requests) / elapsed.Seconds()
	}
	return summary
}

// percentile uses the nearest-rank method on sorted latencies.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func printBenchSummary(c *BenchCommand, s benchSummary) {
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "METRIC\tVALUE\n")
	fmt.Fprintf(tw, "Requests\t%d\n", s.Requests)
	fmt.Fprintf(tw, "Succeeded\t%d\n", s.Succeeded)
	fmt.Fprintf(tw, "Failed\t%d\n", s.Failed)
	fmt.Fprintf(tw, "Recorded\t%d\n", s.Recorded)
	fmt.Fprintf(tw, "Primary\t%d\n", s.Transports[tracker.TransportPrimary])
	fmt.Fprintf(tw, "Fallback\t%d\n", s.Transports[tracker.TransportFallback])
	fmt.Fprintf(tw, "Duration\t%s\n", formatLatency(s.Duration))
	fmt.Fprintf(tw, "Requests/sec\t%.2f\n", s.RPS)
	fmt.Fprintf(tw, "Latency min/avg/max\t%s / %s / %s\n", formatLatency(s.Min), formatLatency(s.Avg), formatLatency(s.Max))
	fmt.Fprintf(tw, "Latency p50/p95/p99\t%s / %s / %s\n", formatLatency(s.P50), formatLatency(s.P95), formatLatency(s.P99))
	_ = tw.Flush()

	if len(s.Errors) > 0 {
		fmt.Fprintln(c.out, "\nErrors:")
		for msg, count := range s.Errors {
			fmt.Fprintf(c.out, "  %4d  %s\n", count, msg)
		}
	}
}
