package schema

import "time"

// ProjectDailyStats accumulates a project's downloads for the current day.
// One row per project; the date column marks which day the counter belongs
// to, and completed days are moved into ProjectDownloadsRollup by the
// rollover step of a processing cycle.
type ProjectDailyStats struct {
	ProjectID string    `gorm:"primaryKey;type:text"`
	Date      string    `gorm:"type:text;not null"`
	Downloads int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ProjectDailyStats) TableName() string {
	return "project_daily_stats"
}
