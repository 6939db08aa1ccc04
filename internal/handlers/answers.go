package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/forum"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type AnswerHandler struct {
	db         *gorm.DB
	ledger     *forum.Ledger
	acceptance *forum.Acceptance
	notifier   forum.Notifier
	log        *zap.SugaredLogger
}

func NewAnswerHandler(db *gorm.DB, ledger *forum.Ledger, acceptance *forum.Acceptance, notifier forum.Notifier, log *zap.SugaredLogger) *AnswerHandler {
	return &AnswerHandler{db: db, ledger: ledger, acceptance: acceptance, notifier: notifier, log: log}
}

// CreateAnswer posts an answer and tells the question's author about it.
func (h *AnswerHandler) CreateAnswer(c *gin.Context) {
	var input models.CreateAnswerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	ctx := c.Request.Context()
	userID := currentUserID(c)

	var question models.Question
	q := h.db.WithContext(ctx).Select("id", "user_id").Where("id = ?", input.QuestionID).Limit(1).Find(&question)
	if q.Error != nil {
		respondDBError(c, h.log, "load question", q.Error)
		return
	}
	if q.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "Question not found")
		return
	}

	answer := models.Answer{
		Content:    input.Content,
		QuestionID: question.ID,
		UserID:     userID,
	}
	if err := h.db.WithContext(ctx).Create(&answer).Error; err != nil {
		respondDBError(c, h.log, "create answer", err)
		return
	}

	if question.UserID != userID {
		n := models.Notification{
			UserID:  question.UserID,
			Type:    models.NotificationAnswer,
			Title:   "New Answer",
			Message: "Someone answered your question",
			Link:    fmt.Sprintf("/questions/%d", question.ID),
		}
		if err := h.notifier.Notify(ctx, n); err != nil {
			h.log.Warnw("failed to notify question author", "question_id", question.ID, "error", err)
		}
	}

	h.log.Infow("answer created", "answer_id", answer.ID, "question_id", question.ID, "user_id", userID)
	respondOK(c, http.StatusCreated, gin.H{"answerId": answer.ID})
}

// AcceptAnswer marks the answer as its question's accepted answer.
func (h *AnswerHandler) AcceptAnswer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.acceptance.Accept(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"ok":         true,
		"questionId": res.QuestionID,
		"answerId":   res.AnswerID,
	})
}

// VoteAnswer toggles or switches the caller's vote on an answer.
func (h *AnswerHandler) VoteAnswer(c *gin.Context) {
	castVote(c, h.ledger, h.log, forum.KindAnswer)
}
