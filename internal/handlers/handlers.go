package handlers

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/forum"
)

// Deps is everything the HTTP handlers share.
type Deps struct {
	DB         *gorm.DB
	Log        *zap.SugaredLogger
	Tokens     *auth.TokenIssuer
	BcryptCost int
	Ledger     *forum.Ledger
	Acceptance *forum.Acceptance
	Moderator  *forum.Moderator
	Views      forum.ViewTracker
	Notifier   forum.Notifier
}

// Handler combines all handler types
type Handler struct {
	Auth         *AuthHandler
	Question     *QuestionHandler
	Answer       *AnswerHandler
	Tag          *TagHandler
	User         *UserHandler
	Notification *NotificationHandler
	Admin        *AdminHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(d Deps) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(d.DB, d.Tokens, d.BcryptCost, d.Log),
		Question:     NewQuestionHandler(d.DB, d.Ledger, d.Views, d.Log),
		Answer:       NewAnswerHandler(d.DB, d.Ledger, d.Acceptance, d.Notifier, d.Log),
		Tag:          NewTagHandler(d.DB, d.Log),
		User:         NewUserHandler(d.DB, d.Log),
		Notification: NewNotificationHandler(d.DB, d.Log),
		Admin:        NewAdminHandler(d.DB, d.Moderator, d.BcryptCost, d.Log),
	}
}
