package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"citewatch/pkg/tracker"
)

type sendJSON struct {
	Transport  tracker.Transport `json:"transport"`
	StatusCode int               `json:"status_code"`
	Recorded   bool              `json:"recorded"`
	FellBack   bool              `json:"fell_back"`
	State      string            `json:"state"`
}

// Execute implements the go-flags Commander interface for SendCommand.
func (c *SendCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.run(ctx)
}

func (c *SendCommand) run(ctx context.Context) error {
	negotiator, err := newNegotiator(c.globals)
	if err != nil {
		return err
	}

	receipt, err := negotiator.Send(ctx, tracker.Event{
		URL:         c.URL,
		Platform:    c.Platform,
		Referer:     c.Referer,
		SearchQuery: c.Query,
	})
	if err != nil {
		if errors.Is(err, tracker.ErrFallbackFailed) {
			return fmt.Errorf("no transport accepted the event: %w", err)
		}
		return err
	}

	if c.globals.JSON {
		return writeJSON(c.out, sendJSON{
			Transport:  receipt.Transport,
			StatusCode: receipt.StatusCode,
			Recorded:   receipt.Recorded,
			FellBack:   receipt.FellBack,
			State:      negotiator.State().String(),
		})
	}

	printRow(c.out, "Transport", receipt.Transport)
	printRow(c.out, "Status", receipt.StatusCode)
	printRow(c.out, "Recorded", yesNo(receipt.Recorded))
	if receipt.FellBack {
		fmt.Fprintln(c.out, "Primary failed; the event was replayed through the fallback endpoint.")
	}
	if !receipt.Recorded {
		fmt.Fprintln(c.out, "The server accepted the event but could not attribute it to an AI platform.")
	}
	return nil
}
