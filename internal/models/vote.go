package models

import "time"

// Vote is one user's current vote on a question or answer. The composite
// unique index keeps a single row per (user, target, kind).
type Vote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:1" json:"user_id"`
	TargetID   uint      `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:2" json:"target_id"`
	TargetKind string    `gorm:"size:10;not null;uniqueIndex:idx_votes_user_target,priority:3" json:"target_kind"`
	Direction  string    `gorm:"size:4;not null" json:"direction"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type VoteRequest struct {
	Type string `json:"type" binding:"required,oneof=up down"`
}
