package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type AuthHandler struct {
	db         *gorm.DB
	tokens     *auth.TokenIssuer
	bcryptCost int
	log        *zap.SugaredLogger
}

func NewAuthHandler(db *gorm.DB, tokens *auth.TokenIssuer, bcryptCost int, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{db: db, tokens: tokens, bcryptCost: bcryptCost, log: log}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	var existing int64
	err := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("username = ? OR email = ?", input.Username, input.Email).
		Count(&existing).Error
	if err != nil {
		respondDBError(c, h.log, "check existing user", err)
		return
	}
	if existing > 0 {
		respondError(c, http.StatusBadRequest, "User already exists with this email or username")
		return
	}

	hashed, err := auth.HashPassword(input.Password, h.bcryptCost)
	if err != nil {
		respondDBError(c, h.log, "hash password", err)
		return
	}

	user := models.User{
		Username: input.Username,
		Email:    input.Email,
		Password: hashed,
		Role:     models.RoleUser,
		Avatar:   input.Avatar,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			respondError(c, http.StatusBadRequest, "User already exists with this email or username")
			return
		}
		respondDBError(c, h.log, "create user", err)
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		respondDBError(c, h.log, "issue token", err)
		return
	}

	h.log.Infow("user registered", "user_id", user.ID, "username", user.Username)
	respondOK(c, http.StatusCreated, gin.H{"user": user, "token": token})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	var user models.User
	err := h.db.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		respondDBError(c, h.log, "load user", err)
		return
	}

	if !auth.CheckPassword(user.Password, input.Password) {
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		respondDBError(c, h.log, "issue token", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"user": user, "token": token})
}

// GetMe returns the current authenticated user
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, ok := h.loadCurrent(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, gin.H{"user": user})
}

// Refresh issues a new token carrying the user's current role.
func (h *AuthHandler) Refresh(c *gin.Context) {
	user, ok := h.loadCurrent(c)
	if !ok {
		return
	}
	token, err := h.tokens.Issue(user)
	if err != nil {
		respondDBError(c, h.log, "issue token", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"token": token})
}

func (h *AuthHandler) loadCurrent(c *gin.Context) (models.User, bool) {
	var user models.User
	err := h.db.WithContext(c.Request.Context()).Take(&user, currentUserID(c)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, http.StatusNotFound, "User not found")
		return user, false
	}
	if err != nil {
		respondDBError(c, h.log, "load user", err)
		return user, false
	}
	return user, true
}
