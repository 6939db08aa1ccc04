package models

import "time"

const DefaultTagColor = "#3b82f6"

type Tag struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:50;not null" json:"name"`
	Description string    `json:"description"`
	Color       string    `gorm:"size:7;not null;default:'#3b82f6'" json:"color"`
	CreatedAt   time.Time `json:"created_at"`
}

// QuestionTag links a question to one of its tags.
type QuestionTag struct {
	QuestionID uint `gorm:"primaryKey"`
	TagID      uint `gorm:"primaryKey;index"`
}
