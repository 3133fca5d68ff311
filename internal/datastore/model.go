package datastore

import "time"

// User is an operator account.
type User struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"type:varchar(20);default:operator"`
	CreatedAt    time.Time
}

// Record is one persisted analysis result.
type Record struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)"`
	UserID         string    `gorm:"index:idx_records_user;type:varchar(36);not null"`
	Timestamp      time.Time `gorm:"index:idx_records_time"`
	Type           string    `gorm:"type:varchar(10)"` // TEXT, AUDIO or VIDEO
	ThreatLevel    string    `gorm:"type:varchar(10)"`
	ContentSnippet string
	Details        string
	SourceNode     string
	CreatedAt      time.Time
}
