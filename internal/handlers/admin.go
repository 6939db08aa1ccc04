package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/forum"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type AdminHandler struct {
	db         *gorm.DB
	moderator  *forum.Moderator
	bcryptCost int
	log        *zap.SugaredLogger
}

func NewAdminHandler(db *gorm.DB, moderator *forum.Moderator, bcryptCost int, log *zap.SugaredLogger) *AdminHandler {
	return &AdminHandler{db: db, moderator: moderator, bcryptCost: bcryptCost, log: log}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	counts := map[string]int64{}
	for key, model := range map[string]interface{}{
		"totalUsers":     &models.User{},
		"totalQuestions": &models.Question{},
		"totalAnswers":   &models.Answer{},
		"totalVotes":     &models.Vote{},
		"totalTags":      &models.Tag{},
	} {
		var n int64
		if err := h.db.WithContext(ctx).Model(model).Count(&n).Error; err != nil {
			respondDBError(c, h.log, "count "+key, err)
			return
		}
		counts[key] = n
	}

	var unanswered int64
	err := h.db.WithContext(ctx).Table("questions AS q").
		Where("NOT EXISTS (SELECT 1 FROM answers a WHERE a.question_id = q.id)").
		Count(&unanswered).Error
	if err != nil {
		respondDBError(c, h.log, "count unanswered", err)
		return
	}
	counts["unansweredQuestions"] = unanswered

	respondOK(c, http.StatusOK, counts)
}

// ListUsers pages through accounts, optionally filtered by a search
// string and role.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	p := parsePage(c, 20)
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))
	role := c.Query("role")
	switch role {
	case "", models.RoleGuest, models.RoleUser, models.RoleAdmin:
	default:
		respondError(c, http.StatusBadRequest, "Invalid role")
		return
	}

	filter := func(tx *gorm.DB) *gorm.DB {
		if search != "" {
			like := "%" + search + "%"
			tx = tx.Where("(LOWER(username) LIKE ? OR LOWER(email) LIKE ?)", like, like)
		}
		if role != "" {
			tx = tx.Where("role = ?", role)
		}
		return tx
	}

	var total int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Scopes(filter).Count(&total).Error; err != nil {
		respondDBError(c, h.log, "count users", err)
		return
	}
	users := []models.User{}
	err := h.db.WithContext(ctx).Scopes(filter).
		Order("created_at DESC, id DESC").
		Limit(p.Limit).Offset(p.Offset()).
		Find(&users).Error
	if err != nil {
		respondDBError(c, h.log, "list users", err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"users": users, "pagination": p.Pagination(total)})
}

func (h *AdminHandler) CreateUser(c *gin.Context) {
	var input models.AdminCreateUserRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	if input.Role == "" {
		input.Role = models.RoleUser
	}

	hashed, err := auth.HashPassword(input.Password, h.bcryptCost)
	if err != nil {
		respondDBError(c, h.log, "hash password", err)
		return
	}
	user := models.User{
		Username: input.Username,
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Password: hashed,
		Role:     input.Role,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			respondError(c, http.StatusBadRequest, "Username or email already exists")
			return
		}
		respondDBError(c, h.log, "create user", err)
		return
	}

	h.log.Infow("admin created user", "admin_id", currentUserID(c), "user_id", user.ID, "role", user.Role)
	respondOK(c, http.StatusCreated, gin.H{"userId": user.ID})
}

// UpdateUser changes another account's username, email, password or role.
// Admins cannot change their own role.
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input models.AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	if id == currentUserID(c) && input.Role != "" && input.Role != models.RoleAdmin {
		respondError(c, http.StatusBadRequest, "Cannot change your own role")
		return
	}

	updates := map[string]interface{}{}
	if input.Username != "" {
		updates["username"] = input.Username
	}
	if input.Email != "" {
		updates["email"] = strings.ToLower(strings.TrimSpace(input.Email))
	}
	if input.Role != "" {
		updates["role"] = input.Role
	}
	if input.Password != "" {
		hashed, err := auth.HashPassword(input.Password, h.bcryptCost)
		if err != nil {
			respondDBError(c, h.log, "hash password", err)
			return
		}
		updates["password"] = hashed
	}
	if len(updates) == 0 {
		respondError(c, http.StatusBadRequest, "No valid fields to update")
		return
	}
	updates["updated_at"] = time.Now().UTC()

	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	switch {
	case database.IsUniqueViolation(res.Error):
		respondError(c, http.StatusBadRequest, "Username or email already exists")
		return
	case res.Error != nil:
		respondDBError(c, h.log, "update user", res.Error)
		return
	case res.RowsAffected == 0:
		respondError(c, http.StatusNotFound, "User not found")
		return
	}

	h.log.Infow("admin updated user", "admin_id", currentUserID(c), "user_id", id, "role", input.Role)
	respondOK(c, http.StatusOK, gin.H{"message": "User updated successfully"})
}

// DeleteUser removes an account and all of its content.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if id == currentUserID(c) {
		respondError(c, http.StatusBadRequest, "Cannot delete your own account")
		return
	}
	if err := h.moderator.DeleteUser(c.Request.Context(), id); err != nil {
		if errors.Is(err, forum.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		respondServiceError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "User deleted successfully"})
}

type adminQuestion struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	UserID      uint      `json:"user_id"`
	Author      string    `json:"author"`
	Votes       int       `json:"votes"`
	Views       int       `json:"views"`
	AnswerCount int64     `json:"answer_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *AdminHandler) ListQuestions(c *gin.Context) {
	ctx := c.Request.Context()
	p := parsePage(c, 20)
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))

	filter := func(tx *gorm.DB) *gorm.DB {
		if search != "" {
			like := "%" + search + "%"
			tx = tx.Where("(LOWER(q.title) LIKE ? OR LOWER(q.description) LIKE ?)", like, like)
		}
		return tx
	}

	var total int64
	if err := h.db.WithContext(ctx).Table("questions AS q").Scopes(filter).Count(&total).Error; err != nil {
		respondDBError(c, h.log, "count questions", err)
		return
	}
	questions := []adminQuestion{}
	err := h.db.WithContext(ctx).Table("questions AS q").
		Select("q.id, q.title, q.user_id, u.username AS author, q.votes, q.views, q.created_at, " +
			"(SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id) AS answer_count").
		Joins("LEFT JOIN users u ON u.id = q.user_id").
		Scopes(filter).
		Order("q.created_at DESC, q.id DESC").
		Limit(p.Limit).Offset(p.Offset()).
		Scan(&questions).Error
	if err != nil {
		respondDBError(c, h.log, "list questions", err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"questions": questions, "pagination": p.Pagination(total)})
}

func (h *AdminHandler) DeleteQuestion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.moderator.DeleteQuestion(c.Request.Context(), id); err != nil {
		if errors.Is(err, forum.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Question not found")
			return
		}
		respondServiceError(c, h.log, err)
		return
	}
	h.log.Infow("admin deleted question", "admin_id", currentUserID(c), "question_id", id)
	respondOK(c, http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

type adminAnswer struct {
	ID            uint      `json:"id"`
	Content       string    `json:"content"`
	QuestionID    uint      `json:"question_id"`
	QuestionTitle string    `json:"question_title"`
	UserID        uint      `json:"user_id"`
	Author        string    `json:"author"`
	Votes         int       `json:"votes"`
	IsAccepted    bool      `json:"is_accepted"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *AdminHandler) ListAnswers(c *gin.Context) {
	ctx := c.Request.Context()
	p := parsePage(c, 20)
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))

	filter := func(tx *gorm.DB) *gorm.DB {
		if search != "" {
			tx = tx.Where("LOWER(a.content) LIKE ?", "%"+search+"%")
		}
		return tx
	}

	var total int64
	if err := h.db.WithContext(ctx).Table("answers AS a").Scopes(filter).Count(&total).Error; err != nil {
		respondDBError(c, h.log, "count answers", err)
		return
	}
	answers := []adminAnswer{}
	err := h.db.WithContext(ctx).Table("answers AS a").
		Select("a.id, a.content, a.question_id, q.title AS question_title, a.user_id, " +
			"u.username AS author, a.votes, a.is_accepted, a.created_at").
		Joins("LEFT JOIN questions q ON q.id = a.question_id").
		Joins("LEFT JOIN users u ON u.id = a.user_id").
		Scopes(filter).
		Order("a.created_at DESC, a.id DESC").
		Limit(p.Limit).Offset(p.Offset()).
		Scan(&answers).Error
	if err != nil {
		respondDBError(c, h.log, "list answers", err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"answers": answers, "pagination": p.Pagination(total)})
}

func (h *AdminHandler) DeleteAnswer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.moderator.DeleteAnswer(c.Request.Context(), id); err != nil {
		if errors.Is(err, forum.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Answer not found")
			return
		}
		respondServiceError(c, h.log, err)
		return
	}
	h.log.Infow("admin deleted answer", "admin_id", currentUserID(c), "answer_id", id)
	respondOK(c, http.StatusOK, gin.H{"message": "Answer deleted successfully"})
}
