package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"citewatch/internal/pkg/platforms"
)

// ErrStoreUnavailable is returned when no database connection exists.
var ErrStoreUnavailable = errors.New("event store unavailable")

// Store appends VisitEvents. Append must be atomic per row; the store
// assigns the ID.
type Store interface {
	Append(ctx context.Context, event *VisitEvent) error
}

// Reader is the read side used by aggregation. Implementations never mutate.
type Reader interface {
	FindEvents(ctx context.Context, filters EventFilters) ([]VisitEvent, error)
}

// EventFilters narrows a read. Zero values mean "no filter".
type EventFilters struct {
	From        time.Time
	To          time.Time
	TrafficType TrafficType
	Platform    platforms.Platform
	Country     string
	URL         string
}

// GormStore persists VisitEvents in SQLite through cartridge's DB manager.
type GormStore struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
}

// NewGormStore creates a store on top of the application DB manager.
func NewGormStore(dbManager cartridge.DBManager, logger *slog.Logger) *GormStore {
	return &GormStore{dbManager: dbManager, logger: logger}
}

func (s *GormStore) connection() (*gorm.DB, error) {
	db := s.dbManager.GetConnection()
	if db == nil {
		return nil, ErrStoreUnavailable
	}
	return db, nil
}

// Append inserts one row.
func (s *GormStore) Append(ctx context.Context, event *VisitEvent) error {
	db, err := s.connection()
	if err != nil {
		return err
	}

	err = sqlite.PerformWrite(s.logger, db, func(tx *gorm.DB) error {
		return tx.WithContext(ctx).Create(event).Error
	})
	if err != nil {
		return fmt.Errorf("failed to store visit event: %w", err)
	}
	return nil
}

// FindEvents returns matching events ordered by timestamp then ID.
func (s *GormStore) FindEvents(ctx context.Context, filters EventFilters) ([]VisitEvent, error) {
	db, err := s.connection()
	if err != nil {
		return nil, err
	}

	query := db.WithContext(ctx).Model(&VisitEvent{})

	if !filters.From.IsZero() {
		query = query.Where("visit_timestamp >= ?", filters.From.UTC())
	}
	if !filters.To.IsZero() {
		query = query.Where("visit_timestamp <= ?", filters.To.UTC())
	}
	if filters.TrafficType != "" {
		query = query.Where("traffic_type = ?", filters.TrafficType)
	}
	if filters.Platform != "" {
		query = query.Where("ai_platform = ?", filters.Platform)
	}
	if filters.Country != "" {
		query = query.Where("country_code = ?", filters.Country)
	}
	if filters.URL != "" {
		query = query.Where("url LIKE ?", "%"+filters.URL+"%")
	}

	var events []VisitEvent
	if err := query.Order("visit_timestamp ASC").Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("error fetching visit events: %w", err)
	}
	return events, nil
}

// CountEvents returns the number of stored events.
func (s *GormStore) CountEvents(ctx context.Context) (int64, error) {
	db, err := s.connection()
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&VisitEvent{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("error counting visit events: %w", err)
	}
	return count, nil
}

// Ping checks that the database answers.
func (s *GormStore) Ping(ctx context.Context) error {
	db, err := s.connection()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// DeleteBefore removes events older than cutoff in batches of batchSize and
// returns the number of deleted rows. Each batch is its own write so ingestion
// is not blocked for the whole sweep.
func (s *GormStore) DeleteBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	db, err := s.connection()
	if err != nil {
		return 0, err
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	var total int64
	for {
		var affected int64
		err := sqlite.PerformWrite(s.logger, db, func(tx *gorm.DB) error {
			ids := tx.Model(&VisitEvent{}).
				Select("id").
				Where("visit_timestamp < ?", cutoff.UTC()).
				Limit(batchSize)
			result := tx.WithContext(ctx).Where("id IN (?)", ids).Delete(&VisitEvent{})
			affected = result.RowsAffected
			return result.Error
		})
		if err != nil {
			return total, fmt.Errorf("failed to delete visit events: %w", err)
		}
		total += affected
		if affected < int64(batchSize) {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
