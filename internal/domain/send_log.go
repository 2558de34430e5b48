package domain

import "time"

// SendLog maps one source message to one of its fan-out copies.
// (DestChatID, DestMessageID) is unique; a source message has one row per
// destination. Rows older than the retention window are pruned and callers
// must tolerate misses.
type SendLog struct {
	ID              int64 `gorm:"primaryKey;autoIncrement"`
	SourceChatID    int64 `gorm:"not null;index:idx_send_log_source"`
	SourceMessageID int64 `gorm:"not null;index:idx_send_log_source"`
	DestChatID      int64 `gorm:"not null;uniqueIndex:idx_send_log_dest"`
	DestMessageID   int64 `gorm:"not null;uniqueIndex:idx_send_log_dest"`
	SourceUserID    int64 `gorm:"index"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
}

func (SendLog) TableName() string { return "send_log" }
