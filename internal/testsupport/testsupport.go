package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"citewatch/internal/events"
	"citewatch/internal/pkg/platforms"
)

// Common user agents used across tests.
const (
	ChromeDesktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	SafariIPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	FirefoxLinuxUA  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	GPTBotUA        = "Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko); compatible; GPTBot/1.2; +https://openai.com/gptbot"
)

// testDBCache caches test databases by root test name so subtests share one database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

func allModels() []any {
	return []any{
		&events.VisitEvent{},
	}
}

// SetupTestDB creates a migrated, named in-memory database.
// cache=shared lets several connections see the same database within a test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager returns a DB manager over a fresh test database and a quiet logger.
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()
	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// GetFirstDayOfISOWeek returns the Monday of the given ISO week
func GetFirstDayOfISOWeek(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := int(jan4.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return jan4.AddDate(0, 0, -offset+(week-1)*7)
}

// Visit builds a VisitEvent with sensible defaults for the fields tests rarely care about.
type Visit struct {
	Platform    platforms.Platform
	TrafficType events.TrafficType
	URL         string
	Referer     string
	Query       string
	Country     string
	UserAgent   string
	PostID      uint
	Timestamp   time.Time
}

// Event converts the builder into a VisitEvent.
func (v Visit) Event() *events.VisitEvent {
	event := &events.VisitEvent{
		Timestamp:   v.Timestamp.UTC(),
		TrafficType: v.TrafficType,
		AIPlatform:  v.Platform,
		URL:         v.URL,
		UserAgent:   v.UserAgent,
	}
	if event.TrafficType == "" {
		event.TrafficType = events.TrafficTypeCitationClick
	}
	if event.URL == "" {
		event.URL = "https://example.com/"
	}
	if event.UserAgent == "" {
		event.UserAgent = ChromeDesktopUA
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if v.Referer != "" {
		r := v.Referer
		event.Referer = &r
	}
	if v.Query != "" {
		q := v.Query
		event.SearchQuery = &q
	}
	if v.Country != "" {
		c := v.Country
		event.CountryCode = &c
	}
	if v.PostID != 0 {
		id := v.PostID
		event.PostID = &id
	}
	return event
}

// CreateVisits inserts visits directly, bypassing classification.
func CreateVisits(t *testing.T, db *gorm.DB, visits ...Visit) []events.VisitEvent {
	t.Helper()
	created := make([]events.VisitEvent, 0, len(visits))
	for _, v := range visits {
		event := v.Event()
		require.NoError(t, db.Create(event).Error)
		created = append(created, *event)
	}
	return created
}
