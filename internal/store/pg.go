package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/craterhub/downloads-accounting/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates or updates the accounting tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.Project{},
		&schema.Version{},
		&schema.ProjectDailyStats{},
		&schema.ProjectDownloadsRollup{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values are replaced with defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings
// into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 10
//   - MaxIdleConns: 2
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 10
	}
	if maxIdleConns == 0 {
		maxIdleConns = 2
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// IncrementVersionDownloads adds delta to a version's download total
func (s *pgStore) IncrementVersionDownloads(ctx context.Context, versionID string, delta int64) error {
	result := s.db.WithContext(ctx).
		Model(&schema.Version{}).
		Where("id = ?", versionID).
		UpdateColumn("downloads", gorm.Expr("downloads + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to increment version downloads: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Version removed between ingestion and flush; nothing to count against
		return fmt.Errorf("version %s not found", versionID)
	}
	return nil
}

// IncrementProjectDownloads adds delta to a project's download total
func (s *pgStore) IncrementProjectDownloads(ctx context.Context, projectID string, delta int64) error {
	result := s.db.WithContext(ctx).
		Model(&schema.Project{}).
		Where("id = ?", projectID).
		UpdateColumn("downloads", gorm.Expr("downloads + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to increment project downloads: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("project %s not found", projectID)
	}
	return nil
}

// UpsertDailyDownloads adds delta to a project's counter for the given day
func (s *pgStore) UpsertDailyDownloads(ctx context.Context, projectID string, date string, delta int64) error {
	row := schema.ProjectDailyStats{
		ProjectID: projectID,
		Date:      date,
		Downloads: delta,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "project_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"downloads": gorm.Expr("project_daily_stats.downloads + ?", delta),
			}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert daily downloads: %w", err)
	}
	return nil
}

// RolloverDailyStats archives completed daily rows into the rollup table and
// resets them for today. Runs in one transaction so a crash cannot archive a
// day twice.
func (s *pgStore) RolloverDailyStats(ctx context.Context, today string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []schema.ProjectDailyStats
		err := tx.
			Where("downloads > 0 AND date <> ?", today).
			Find(&stale).Error
		if err != nil {
			return fmt.Errorf("failed to load stale daily stats: %w", err)
		}
		if len(stale) == 0 {
			return nil
		}

		rollups := make([]schema.ProjectDownloadsRollup, 0, len(stale))
		projectIDs := make([]string, 0, len(stale))
		for _, row := range stale {
			rollups = append(rollups, schema.ProjectDownloadsRollup{
				ProjectID: row.ProjectID,
				Date:      row.Date,
				Downloads: row.Downloads,
			})
			projectIDs = append(projectIDs, row.ProjectID)
		}

		if err := tx.Create(&rollups).Error; err != nil {
			return fmt.Errorf("failed to archive daily stats: %w", err)
		}

		err = tx.Model(&schema.ProjectDailyStats{}).
			Where("project_id IN ?", projectIDs).
			Updates(map[string]interface{}{
				"date":      today,
				"downloads": 0,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to reset daily stats: %w", err)
		}

		return nil
	})
}
