package models

import "time"

type Question struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Title            string    `gorm:"size:200;not null" json:"title"`
	Description      string    `gorm:"type:text;not null" json:"description"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	AcceptedAnswerID *uint     `json:"accepted_answer_id"`
	Views            int       `gorm:"not null;default:0" json:"views"`
	Votes            int       `gorm:"not null;default:0" json:"votes"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type CreateQuestionRequest struct {
	Title       string   `json:"title" binding:"required,min=10,max=200"`
	Description string   `json:"description" binding:"required,min=20"`
	Tags        []string `json:"tags" binding:"required,min=1,max=5,dive,required,max=50"`
}
