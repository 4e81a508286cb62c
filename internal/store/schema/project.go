package schema

import "time"

// Project is the durable project row owning the lifetime download total.
// Rows are created by the platform's CRUD layer; the accounting pipeline
// only increments the downloads column.
type Project struct {
	ID        string    `gorm:"primaryKey;type:text"`
	Slug      string    `gorm:"type:text;uniqueIndex"`
	Name      string    `gorm:"type:text;not null"`
	Downloads int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Project) TableName() string {
	return "projects"
}
