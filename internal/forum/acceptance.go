package forum

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// Notifier delivers a notification to a user. Implementations persist it
// and may fan it out further.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type AcceptResult struct {
	QuestionID uint `json:"questionId"`
	AnswerID   uint `json:"answerId"`
	// Changed is false when the answer was already the accepted one.
	Changed    bool `json:"changed"`
}

// Acceptance keeps at most one accepted answer per question. Only the
// question's author may move the pointer; there is no way to clear it.
type Acceptance struct {
	db       *gorm.DB
	notifier Notifier
	log      *zap.SugaredLogger
}

func NewAcceptance(db *gorm.DB, notifier Notifier, log *zap.SugaredLogger) *Acceptance {
	return &Acceptance{db: db, notifier: notifier, log: log}
}

type acceptanceRow struct {
	AnswerID         uint
	QuestionID       uint
	AnswerAuthor     uint
	QuestionAuthor   uint
	IsAccepted       bool
	AcceptedAnswerID *uint
}

// Accept marks answerID as the accepted answer of its question on behalf
// of userID.
func (a *Acceptance) Accept(ctx context.Context, userID, answerID uint) (AcceptResult, error) {
	var (
		res          AcceptResult
		answerAuthor uint
	)

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row acceptanceRow
		q := tx.Table("answers AS a").
			Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "q"}}).
			Select("a.id AS answer_id, a.question_id, a.user_id AS answer_author, a.is_accepted, " +
				"q.user_id AS question_author, q.accepted_answer_id").
			Joins("JOIN questions q ON q.id = a.question_id").
			Where("a.id = ?", answerID).
			Limit(1).
			Scan(&row)
		if q.Error != nil {
			return unavailable("load answer", q.Error)
		}
		if q.RowsAffected == 0 {
			return fmt.Errorf("%w: answer %d not found", ErrNotFound, answerID)
		}
		if row.QuestionAuthor != userID {
			return fmt.Errorf("%w: only the question author can accept answers", ErrForbidden)
		}

		res = AcceptResult{QuestionID: row.QuestionID, AnswerID: row.AnswerID}
		answerAuthor = row.AnswerAuthor

		if row.IsAccepted && row.AcceptedAnswerID != nil && *row.AcceptedAnswerID == answerID {
			return nil
		}
		res.Changed = true

		err := tx.Model(&models.Answer{}).
			Where("question_id = ? AND id <> ? AND is_accepted = ?", row.QuestionID, answerID, true).
			Update("is_accepted", false).Error
		if err != nil {
			return unavailable("clear accepted answers", err)
		}
		err = tx.Model(&models.Answer{}).Where("id = ?", answerID).Update("is_accepted", true).Error
		if err != nil {
			return unavailable("accept answer", err)
		}
		err = tx.Model(&models.Question{}).Where("id = ?", row.QuestionID).Update("accepted_answer_id", answerID).Error
		if err != nil {
			return unavailable("update question", err)
		}
		return nil
	})
	if err != nil {
		return AcceptResult{}, storeError("accept answer tx", err)
	}

	a.log.Infow("answer accepted",
		"question_id", res.QuestionID, "answer_id", res.AnswerID, "user_id", userID, "changed", res.Changed)

	if res.Changed && answerAuthor != userID {
		n := models.Notification{
			UserID:  answerAuthor,
			Type:    models.NotificationAccepted,
			Title:   "Answer Accepted",
			Message: "Your answer was accepted!",
			Link:    fmt.Sprintf("/questions/%d", res.QuestionID),
		}
		if err := a.notifier.Notify(ctx, n); err != nil {
			a.log.Warnw("failed to notify answer author", "answer_id", res.AnswerID, "user_id", answerAuthor, "error", err)
		}
	}

	return res, nil
}
