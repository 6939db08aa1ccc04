package models

import "time"

const (
	NotificationAnswer   = "answer"
	NotificationAccepted = "accept"
	NotificationComment  = "comment"
	NotificationMention  = "mention"
)

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_notifications_user_read,priority:1" json:"-"`
	Type      string    `gorm:"size:16;not null" json:"type"`
	Title     string    `gorm:"not null" json:"title"`
	Message   string    `gorm:"not null" json:"message"`
	Link      string    `json:"link"`
	IsRead    bool      `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2" json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
