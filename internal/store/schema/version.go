package schema

import "time"

// Version is a released artifact version of a project
type Version struct {
	ID            string    `gorm:"primaryKey;type:text"`
	ProjectID     string    `gorm:"type:text;not null;index"`
	VersionNumber string    `gorm:"type:text;not null"`
	Downloads     int64     `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Version) TableName() string {
	return "versions"
}
