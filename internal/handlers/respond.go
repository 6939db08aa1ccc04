package handlers

import (
	"errors"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/emilythestrangee/stackit/backend/internal/forum"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// RegisterValidators adds the custom binding rules used by request
// structs. It is safe to call more than once.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": gin.H{"message": message}})
}

// respondBindError reports request validation failures field by field.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	details := make([]gin.H, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, gin.H{"field": fe.Field(), "rule": fe.Tag(), "param": fe.Param()})
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   gin.H{"message": "Validation failed", "details": details},
	})
}

// respondServiceError maps forum errors onto HTTP statuses. Server-side
// causes are logged and hidden from the client.
func respondServiceError(c *gin.Context, log *zap.SugaredLogger, err error) {
	switch {
	case errors.Is(err, forum.ErrInvalid):
		respondError(c, http.StatusBadRequest, clientMessage(err, forum.ErrInvalid))
	case errors.Is(err, forum.ErrForbidden):
		respondError(c, http.StatusForbidden, clientMessage(err, forum.ErrForbidden))
	case errors.Is(err, forum.ErrNotFound):
		respondError(c, http.StatusNotFound, clientMessage(err, forum.ErrNotFound))
	case errors.Is(err, forum.ErrUnavailable):
		log.Errorw("store unavailable", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry")
	default:
		log.Errorw("request failed", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// clientMessage drops the category prefix from a domain error and
// capitalizes the remaining detail.
func clientMessage(err, category error) string {
	detail, ok := strings.CutPrefix(err.Error(), category.Error()+": ")
	if !ok || detail == "" {
		detail = category.Error()
	}
	return strings.ToUpper(detail[:1]) + detail[1:]
}

func respondDBError(c *gin.Context, log *zap.SugaredLogger, op string, err error) {
	log.Errorw("database error", "op", op, "path", c.FullPath(), "error", err)
	respondError(c, http.StatusInternalServerError, "Internal server error")
}

// paramID parses a positive numeric path parameter, answering 400 when
// it is malformed.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// currentUserID returns the authenticated user's id, or 0 for anonymous
// requests.
func currentUserID(c *gin.Context) uint {
	id, ok := middleware.CurrentUser(c)
	if !ok {
		return 0
	}
	return id.UserID
}

type page struct {
	Page  int
	Limit int
}

func (p page) Offset() int { return (p.Page - 1) * p.Limit }

type pagination struct {
	Current int   `json:"current"`
	Total   int   `json:"total"`
	Limit   int   `json:"limit"`
	Items   int64 `json:"totalItems"`
}

func (p page) Pagination(total int64) pagination {
	return pagination{
		Current: p.Page,
		Total:   int(math.Ceil(float64(total) / float64(p.Limit))),
		Limit:   p.Limit,
		Items:   total,
	}
}

func parsePage(c *gin.Context, defaultLimit int) page {
	p := page{Page: 1, Limit: defaultLimit}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.Limit = min(v, 100)
	}
	return p
}
