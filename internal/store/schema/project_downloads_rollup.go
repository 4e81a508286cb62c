package schema

import "time"

// ProjectDownloadsRollup is the analytics archive of per-project,
// per-day download counts, fed by the daily stats rollover
type ProjectDownloadsRollup struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ProjectID string    `gorm:"type:text;not null;index:idx_rollup_project_date"`
	Date      string    `gorm:"type:text;not null;index:idx_rollup_project_date"`
	Downloads int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ProjectDownloadsRollup) TableName() string {
	return "project_downloads_rollups"
}
