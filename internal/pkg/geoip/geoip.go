package geoip

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"

	"citewatch/internal/config"
)

// countryReader is the part of *geoip2.Reader used for lookups.
type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Close() error
}

var (
	geoDB  countryReader
	once   sync.Once
	mu     sync.RWMutex
	logger *slog.Logger

	countries     *gountries.Query
	countriesOnce sync.Once

	openGeoDB = func() countryReader {
		if db := InitGeoDB(); db != nil {
			return db
		}
		return nil
	}
)

// regionalIndicatorA is the codepoint of REGIONAL INDICATOR SYMBOL LETTER A.
const regionalIndicatorA = 0x1F1E6

// InitLogger sets the logger for the geoip package.
func InitLogger(l *slog.Logger) {
	logger = l
}

// InitGeoDB opens the configured GeoLite2 database.
// Returns nil if the database is not configured or not found (GeoIP is optional).
func InitGeoDB() *geoip2.Reader {
	cfg := config.GetConfig()
	if cfg.GeoDBPath == "" {
		if logger != nil {
			logger.Debug("GeoIP database path not configured - country lookup disabled")
		}
		return nil
	}

	if _, err := os.Stat(cfg.GeoDBPath); err != nil {
		if logger != nil {
			logger.Info("GeoLite2 database not available - country lookup disabled",
				slog.String("path", cfg.GeoDBPath),
				slog.Any("error", err))
		}
		return nil
	}

	db, err := geoip2.Open(cfg.GeoDBPath)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to open GeoLite2 database",
				slog.String("path", cfg.GeoDBPath),
				slog.Any("error", err))
		}
		return nil
	}

	if logger != nil {
		logger.Info("GeoLite2 database initialized", slog.String("path", cfg.GeoDBPath))
	}
	return db
}

// load opens the database on first use.
func load() {
	once.Do(func() {
		mu.Lock()
		geoDB = openGeoDB()
		mu.Unlock()
	})
}

// ReloadGeoDB reopens the database file, e.g. after the updater replaced it.
// It waits for in-flight lookups before closing the old reader.
func ReloadGeoDB() {
	// Keep a later load from opening a second reader.
	once.Do(func() {})

	mu.Lock()
	defer mu.Unlock()

	if geoDB != nil {
		_ = geoDB.Close()
	}
	geoDB = openGeoDB()

	if geoDB != nil && logger != nil {
		logger.Info("GeoLite2 database reloaded")
	}
}

// Available reports whether IP lookups can be served.
func Available() bool {
	load()
	mu.RLock()
	defer mu.RUnlock()
	return geoDB != nil
}

// CountryFromIP resolves an IP address to an uppercase ISO 3166 alpha-2 code.
// Any failure yields "" so callers can keep the field empty.
func CountryFromIP(ipAddress string) string {
	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil {
		return ""
	}

	load()
	// The reader is memory mapped, so it stays locked until the lookup is done.
	mu.RLock()
	defer mu.RUnlock()
	if geoDB == nil {
		return ""
	}

	record, err := geoDB.Country(ip)
	if err != nil {
		if logger != nil {
			logger.Debug("Country lookup failed",
				slog.String("ip_address", ipAddress),
				slog.Any("error", err))
		}
		return ""
	}

	return NormalizeCountryCode(record.Country.IsoCode)
}

// NormalizeCountryCode uppercases a two letter code, or returns "" when the
// value is not exactly two ASCII letters.
func NormalizeCountryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return ""
	}
	for i := 0; i < 2; i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return ""
		}
	}
	return code
}

// ExtractFlag converts a two letter country code into its flag emoji, the
// pair of regional indicator symbols for its letters. Anything that is not
// exactly two letters yields "".
func ExtractFlag(countryCode string) string {
	code := NormalizeCountryCode(countryCode)
	if code == "" || len(strings.TrimSpace(countryCode)) != len(countryCode) {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(code); i++ {
		b.WriteRune(rune(regionalIndicatorA + int(code[i]-'A')))
	}
	return b.String()
}

// CountryName returns the common English name for a code, or the code itself
// when gountries does not know it.
func CountryName(countryCode string) string {
	countriesOnce.Do(func() {
		countries = gountries.New()
	})
	country, err := countries.FindCountryByAlpha(countryCode)
	if err != nil {
		return countryCode
	}
	return country.Name.Common
}
