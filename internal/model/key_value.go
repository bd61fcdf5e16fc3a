package model

import "time"

// KeyValue is a single persisted string value.
type KeyValue struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}
