package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type UserHandler struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewUserHandler(db *gorm.DB, log *zap.SugaredLogger) *UserHandler {
	return &UserHandler{db: db, log: log}
}

type recentQuestion struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Votes     int       `json:"votes"`
	Views     int       `json:"views"`
	CreatedAt time.Time `json:"created_at"`
}

type recentAnswer struct {
	ID            uint      `json:"id"`
	Votes         int       `json:"votes"`
	IsAccepted    bool      `json:"is_accepted"`
	CreatedAt     time.Time `json:"created_at"`
	QuestionID    uint      `json:"question_id"`
	QuestionTitle string    `json:"question_title"`
}

// GetUserProfile returns a user's public profile. The email address is
// never included.
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	ctx := c.Request.Context()
	username := c.Param("username")

	var user models.User
	err := h.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		respondDBError(c, h.log, "load user", err)
		return
	}

	var stats struct {
		QuestionCount int64
		QuestionVotes int64
		AnswerCount   int64
		AnswerVotes   int64
		AcceptedCount int64
	}
	err = h.db.WithContext(ctx).Raw(`
		SELECT
			(SELECT COUNT(*) FROM questions WHERE user_id = @id) AS question_count,
			(SELECT COALESCE(SUM(votes), 0) FROM questions WHERE user_id = @id) AS question_votes,
			(SELECT COUNT(*) FROM answers WHERE user_id = @id) AS answer_count,
			(SELECT COALESCE(SUM(votes), 0) FROM answers WHERE user_id = @id) AS answer_votes,
			(SELECT COUNT(*) FROM answers WHERE user_id = @id AND is_accepted = @accepted) AS accepted_count`,
		map[string]interface{}{"id": user.ID, "accepted": true}).
		Scan(&stats).Error
	if err != nil {
		respondDBError(c, h.log, "load user stats", err)
		return
	}

	questions := []recentQuestion{}
	err = h.db.WithContext(ctx).Model(&models.Question{}).
		Select("id, title, votes, views, created_at").
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(5).
		Scan(&questions).Error
	if err != nil {
		respondDBError(c, h.log, "load recent questions", err)
		return
	}

	answers := []recentAnswer{}
	err = h.db.WithContext(ctx).Table("answers AS a").
		Select("a.id, a.votes, a.is_accepted, a.created_at, q.id AS question_id, q.title AS question_title").
		Joins("JOIN questions q ON q.id = a.question_id").
		Where("a.user_id = ?", user.ID).
		Order("a.created_at DESC").
		Limit(5).
		Scan(&answers).Error
	if err != nil {
		respondDBError(c, h.log, "load recent answers", err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"user": gin.H{
			"id":              user.ID,
			"username":        user.Username,
			"role":            user.Role,
			"avatar":          user.Avatar,
			"created_at":      user.CreatedAt,
			"question_count":  stats.QuestionCount,
			"answer_count":    stats.AnswerCount,
			"accepted_count":  stats.AcceptedCount,
			"total_votes":     stats.QuestionVotes + stats.AnswerVotes,
			"recentQuestions": questions,
			"recentAnswers":   answers,
		},
	})
}

// UpdateProfile changes the caller's own username, email, avatar or phone.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var input models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	ctx := c.Request.Context()
	userID := currentUserID(c)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	updates := map[string]interface{}{}
	if input.Username != "" {
		updates["username"] = input.Username
	}
	if input.Email != "" {
		updates["email"] = input.Email
	}
	if input.Avatar != "" {
		updates["avatar"] = input.Avatar
	}
	if input.Phone != "" {
		updates["phone"] = input.Phone
	}
	if len(updates) == 0 {
		respondError(c, http.StatusBadRequest, "Nothing to update")
		return
	}

	if input.Username != "" || input.Email != "" {
		var taken int64
		err := h.db.WithContext(ctx).Model(&models.User{}).
			Where("(username = ? OR email = ?) AND id <> ?", input.Username, input.Email, userID).
			Count(&taken).Error
		if err != nil {
			respondDBError(c, h.log, "check existing user", err)
			return
		}
		if taken > 0 {
			respondError(c, http.StatusBadRequest, "Username or email already exists")
			return
		}
	}

	var user models.User
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Take(&user, userID).Error
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondError(c, http.StatusNotFound, "User not found")
		return
	case database.IsUniqueViolation(err):
		respondError(c, http.StatusBadRequest, "Username or email already exists")
		return
	case err != nil:
		respondDBError(c, h.log, "update profile", err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"message": "Profile updated successfully", "user": user})
}
