package division

import "time"

type Division struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Name        string    `gorm:"column:name;not null;uniqueIndex"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Division) TableName() string {
	return "divisions"
}
