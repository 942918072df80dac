package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/inkpost/internal/models"
)

// DatabaseStore implements Store on the primary SQL database, one row per counted event. It is the
// fallback when Redis is disabled or unreachable.
//
// Each evaluation first upserts the key's rate_limit_buckets row. The upsert holds that row's lock
// until commit on postgres and mysql, so checks on one key run one at a time and the count they
// read already includes every admitted hit. SQLite serialises writers on its own.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db}
}

// SlidingWindow implements Store.
func (s *DatabaseStore) SlidingWindow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (WindowResult, error) {
	if s == nil {
		return WindowResult{}, errors.New("cache: database store not initialised")
	}
	if err := validateWindow(limit, window); err != nil {
		return WindowResult{}, err
	}

	nowMillis := now.UnixMilli()
	var result WindowResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockBucket(tx, key, nowMillis); err != nil {
			return err
		}

		if err := tx.Where("bucket = ? AND hit_at <= ?", key, nowMillis-window.Milliseconds()).
			Delete(&models.RateLimitHit{}).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.RateLimitHit{}).Where("bucket = ?", key).Count(&count).Error; err != nil {
			return err
		}

		if count < int64(limit) {
			if err := tx.Create(&models.RateLimitHit{Bucket: key, HitAt: nowMillis}).Error; err != nil {
				return err
			}
			count++
			result.Allowed = true
		}

		var oldest int64
		if err := tx.Model(&models.RateLimitHit{}).
			Where("bucket = ?", key).
			Select("COALESCE(MIN(hit_at), 0)").
			Scan(&oldest).Error; err != nil {
			return err
		}

		result.Count = int(count)
		result.ResetAt = resetAt(oldest, window, now)
		return nil
	})
	if err != nil {
		return WindowResult{}, err
	}
	return result, nil
}

func lockBucket(tx *gorm.DB, key string, nowMillis int64) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bucket"}},
		DoUpdates: clause.AssignmentColumns([]string{"touched_at"}),
	}).Create(&models.RateLimitBucket{Bucket: key, TouchedAt: nowMillis}).Error
}

// PurgeBefore removes every hit recorded before cutoff, along with buckets idle since then, and
// returns the number of hits deleted.
func (s *DatabaseStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil {
		return 0, errors.New("cache: database store not initialised")
	}
	cutoffMillis := cutoff.UnixMilli()

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("hit_at < ?", cutoffMillis).Delete(&models.RateLimitHit{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return tx.Where("touched_at < ?", cutoffMillis).Delete(&models.RateLimitBucket{}).Error
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Ping checks database connectivity.
func (s *DatabaseStore) Ping(ctx context.Context) error {
	if s == nil {
		return errors.New("cache: database store not initialised")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close is a no-op; the connection pool belongs to the caller.
func (s *DatabaseStore) Close() error {
	return nil
}
