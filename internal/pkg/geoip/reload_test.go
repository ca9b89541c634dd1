package geoip

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowReader struct {
	started  chan struct{}
	closed   atomic.Bool
	usedDead atomic.Bool
}

func (r *slowReader) Country(net.IP) (*geoip2.Country, error) {
	close(r.started)
	time.Sleep(30 * time.Millisecond)
	if r.closed.Load() {
		r.usedDead.Store(true)
		return nil, errors.New("reader closed")
	}
	record := &geoip2.Country{}
	record.Country.IsoCode = "de"
	return record, nil
}

func (r *slowReader) Close() error {
	r.closed.Store(true)
	return nil
}

func TestReloadWaitsForInFlightLookup(t *testing.T) {
	reader := &slowReader{started: make(chan struct{})}

	once.Do(func() {})
	mu.Lock()
	previous, previousOpen := geoDB, openGeoDB
	geoDB = reader
	openGeoDB = func() countryReader { return nil }
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		geoDB, openGeoDB = previous, previousOpen
		mu.Unlock()
	})

	var wg sync.WaitGroup
	var country string
	wg.Add(1)
	go func() {
		defer wg.Done()
		country = CountryFromIP("203.0.113.7")
	}()

	<-reader.started
	ReloadGeoDB()
	wg.Wait()

	require.True(t, reader.closed.Load())
	assert.False(t, reader.usedDead.Load())
	assert.Equal(t, "DE", country)
	assert.False(t, Available())
	assert.Equal(t, "", CountryFromIP("203.0.113.7"))
}
