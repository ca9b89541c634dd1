package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citewatch/internal/analytics"
	"citewatch/internal/events"
	"citewatch/internal/pkg/platforms"
	"citewatch/internal/testsupport"
)

func seededStatsCommand(t *testing.T, globals *GlobalFlags, out *bytes.Buffer) *StatsCommand {
	t.Helper()
	dbManager, logger := testsupport.SetupTestDBManager(t)
	now := time.Now().UTC()

	testsupport.CreateVisits(t, dbManager.GetConnection(),
		testsupport.Visit{Platform: platforms.ChatGPT, Timestamp: now.Add(-time.Hour)},
		testsupport.Visit{Platform: platforms.ChatGPT, Timestamp: now.Add(-2 * time.Hour), Query: "crm"},
		testsupport.Visit{Platform: platforms.Perplexity, Timestamp: now.Add(-3 * time.Hour), Query: "best crm"},
		testsupport.Visit{Platform: platforms.ChatGPT, TrafficType: events.TrafficTypeBotCrawl, Timestamp: now.Add(-time.Hour)},
	)

	return &StatsCommand{
		Days:    7,
		globals: globals,
		out:     out,
		reader:  events.NewGormStore(dbManager, logger),
	}
}

func TestStatsCommandHuman(t *testing.T) {
	var out bytes.Buffer
	cmd := seededStatsCommand(t, &GlobalFlags{}, &out)

	require.NoError(t, cmd.Execute(nil))

	text := out.String()
	assert.Contains(t, text, "Citation Overview")
	assert.Contains(t, text, "Citations:       3")
	assert.Contains(t, text, "Crawls:          1")
	assert.Contains(t, text, "Citation rate:   75.0%")
	assert.Contains(t, text, "Last 7d:         3 citations, 1 crawls")
	assert.Contains(t, text, "PLATFORM")
	assert.Contains(t, text, "ChatGPT")
	assert.Contains(t, text, "Perplexity")
}

func TestStatsCommandJSON(t *testing.T) {
	var out bytes.Buffer
	cmd := seededStatsCommand(t, &GlobalFlags{JSON: true}, &out)
	cmd.Platform = "perplexity"

	require.NoError(t, cmd.Execute(nil))

	var got struct {
		Overview  analytics.Overview         `json:"overview"`
		Daily     []analytics.DailyBucket    `json:"daily"`
		Platforms []analytics.PlatformRollup `json:"platforms"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 1, got.Overview.TotalCitations)
	assert.Len(t, got.Daily, 7)
	require.Len(t, got.Platforms, 1)
	assert.Equal(t, platforms.Perplexity, got.Platforms[0].Platform)
	assert.Equal(t, 100, got.Platforms[0].CaptureRate)
}

func TestStatsCommandValidation(t *testing.T) {
	var out bytes.Buffer
	cmd := seededStatsCommand(t, &GlobalFlags{}, &out)

	cmd.Platform = "altavista"
	assert.ErrorContains(t, cmd.run(context.Background(), analytics.NewEngine(cmd.reader)), "unknown platform")

	cmd.Platform = ""
	cmd.Days = 0
	assert.ErrorContains(t, cmd.run(context.Background(), analytics.NewEngine(cmd.reader)), "--days")
}
