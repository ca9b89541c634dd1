package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"citewatch/pkg/tracker"
)

// Execute implements the go-flags Commander interface for TestConnectionCommand.
func (c *TestConnectionCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.run(ctx)
}

func (c *TestConnectionCommand) run(ctx context.Context) error {
	negotiator, err := newNegotiator(c.globals)
	if err != nil {
		return err
	}

	report := negotiator.TestConnection(ctx)

	if c.globals.JSON {
		if err := writeJSON(c.out, report); err != nil {
			return err
		}
	} else {
		printTransport(c, report.Primary)
		fmt.Fprintln(c.out)
		printTransport(c, report.Fallback)
	}

	if !report.Primary.Available && !report.Fallback.Available {
		return fmt.Errorf("no transport is reachable at %s", c.globals.BaseURL)
	}
	return nil
}

func printTransport(c *TestConnectionCommand, report tracker.TransportReport) {
	fmt.Fprintf(c.out, "%s (%s)\n", report.Transport, report.URL)
	printRow(c.out, "  Available", yesNo(report.Available))
	if report.StatusCode != 0 {
		printRow(c.out, "  Status", report.StatusCode)
	}
	printRow(c.out, "  Latency", formatLatency(report.Latency))
	if report.Error != "" {
		printRow(c.out, "  Error", report.Error)
	}
}
