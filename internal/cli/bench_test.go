package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchCommand(t *testing.T) {
	fs := newFakeServer(t, http.StatusOK, http.StatusAccepted)
	var out bytes.Buffer

	err := RunWithArgs("test", []string{
		"--base-url", fs.URL, "--json",
		"bench", "-c", "4", "-n", "24",
	}, &out)
	require.NoError(t, err)

	var summary benchSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 24, summary.Requests)
	assert.Equal(t, 24, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 24, summary.Transports["primary"])
	assert.Equal(t, int32(24), fs.primaryHits.Load())
	// Clients share one probe result, so at most one probe per client.
	assert.LessOrEqual(t, fs.healthHits.Load(), int32(4))
	assert.LessOrEqual(t, summary.P50, summary.P99)
	assert.LessOrEqual(t, summary.Min, summary.Max)
}

func TestBenchCommandValidation(t *testing.T) {
	cmd := &BenchCommand{Concurrency: 0, Requests: 10, Site: "https://example.com", globals: &GlobalFlags{}, out: &bytes.Buffer{}}
	assert.Error(t, cmd.run(context.Background()))

	cmd = &BenchCommand{Concurrency: 1, Requests: 1, Site: "not a site", globals: &GlobalFlags{}, out: &bytes.Buffer{}}
	assert.ErrorContains(t, cmd.run(context.Background()), "--site")
}

func TestPercentile(t *testing.T) {
	var sorted []time.Duration
	for i := 1; i <= 100; i++ {
		sorted = append(sorted, time.Duration(i)*time.Millisecond)
	}
	assert.Equal(t, 50*time.Millisecond, percentile(sorted, 50))
	assert.Equal(t, 95*time.Millisecond, percentile(sorted, 95))
	assert.Equal(t, 100*time.Millisecond, percentile(sorted, 100))
	assert.Equal(t, 7*time.Millisecond, percentile([]time.Duration{7 * time.Millisecond}, 99))
}
