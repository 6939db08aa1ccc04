package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TagHandler struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewTagHandler(db *gorm.DB, log *zap.SugaredLogger) *TagHandler {
	return &TagHandler{db: db, log: log}
}

type tagWithCount struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Color         string    `json:"color"`
	CreatedAt     time.Time `json:"created_at"`
	QuestionCount int64     `json:"question_count"`
}

// ListTags returns every tag with the number of questions using it, most
// used first.
func (h *TagHandler) ListTags(c *gin.Context) {
	tags := []tagWithCount{}
	err := h.db.WithContext(c.Request.Context()).Table("tags AS t").
		Select("t.id, t.name, t.description, t.color, t.created_at, COUNT(qt.question_id) AS question_count").
		Joins("LEFT JOIN question_tags qt ON qt.tag_id = t.id").
		Group("t.id, t.name, t.description, t.color, t.created_at").
		Order("question_count DESC, t.name ASC").
		Scan(&tags).Error
	if err != nil {
		respondDBError(c, h.log, "list tags", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"tags": tags})
}
