package forum

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// Moderator deletes users, questions and answers together with everything
// that references them, keeping vote counters consistent with the ledger.
type Moderator struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewModerator(db *gorm.DB, log *zap.SugaredLogger) *Moderator {
	return &Moderator{db: db, log: log}
}

func (m *Moderator) DeleteAnswer(ctx context.Context, answerID uint) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var answer models.Answer
		q := tx.Select("id", "question_id").Where("id = ?", answerID).Limit(1).Find(&answer)
		if q.Error != nil {
			return unavailable("load answer", q.Error)
		}
		if q.RowsAffected == 0 {
			return fmt.Errorf("%w: answer %d not found", ErrNotFound, answerID)
		}
		return deleteAnswers(tx, []uint{answer.ID})
	})
	return storeError("delete answer tx", err)
}

func (m *Moderator) DeleteQuestion(ctx context.Context, questionID uint) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Question{}).Where("id = ?", questionID).Count(&count).Error; err != nil {
			return unavailable("load question", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: question %d not found", ErrNotFound, questionID)
		}
		return deleteQuestions(tx, []uint{questionID})
	})
	return storeError("delete question tx", err)
}

// DeleteUser removes a user and all of their content. Their votes are
// withdrawn first so other users' counters stay correct.
func (m *Moderator) DeleteUser(ctx context.Context, userID uint) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return unavailable("load user", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: user %d not found", ErrNotFound, userID)
		}

		var votes []models.Vote
		if err := tx.Where("user_id = ?", userID).Find(&votes).Error; err != nil {
			return unavailable("load votes", err)
		}
		for _, v := range votes {
			delta := -Direction(v.Direction).weight()
			if err := applyDelta(tx, TargetKind(v.TargetKind), v.TargetID, delta); err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Vote{}).Error; err != nil {
			return unavailable("delete votes", err)
		}

		var answerIDs []uint
		if err := tx.Model(&models.Answer{}).Where("user_id = ?", userID).Pluck("id", &answerIDs).Error; err != nil {
			return unavailable("load answers", err)
		}
		if err := deleteAnswers(tx, answerIDs); err != nil {
			return err
		}

		var questionIDs []uint
		if err := tx.Model(&models.Question{}).Where("user_id = ?", userID).Pluck("id", &questionIDs).Error; err != nil {
			return unavailable("load questions", err)
		}
		if err := deleteQuestions(tx, questionIDs); err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.Notification{}).Error; err != nil {
			return unavailable("delete notifications", err)
		}
		if err := tx.Delete(&models.User{}, userID).Error; err != nil {
			return unavailable("delete user", err)
		}
		return nil
	})
	if err != nil {
		return storeError("delete user tx", err)
	}
	m.log.Infow("user deleted", "user_id", userID)
	return nil
}

func deleteAnswers(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := tx.Where("target_kind = ? AND target_id IN ?", string(KindAnswer), ids).Delete(&models.Vote{}).Error
	if err != nil {
		return unavailable("delete answer votes", err)
	}
	err = tx.Model(&models.Question{}).
		Where("accepted_answer_id IN ?", ids).
		Update("accepted_answer_id", nil).Error
	if err != nil {
		return unavailable("clear accepted answer", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.Answer{}).Error; err != nil {
		return unavailable("delete answers", err)
	}
	return nil
}

func deleteQuestions(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var answerIDs []uint
	if err := tx.Model(&models.Answer{}).Where("question_id IN ?", ids).Pluck("id", &answerIDs).Error; err != nil {
		return unavailable("load answers", err)
	}
	if err := deleteAnswers(tx, answerIDs); err != nil {
		return err
	}
	err := tx.Where("target_kind = ? AND target_id IN ?", string(KindQuestion), ids).Delete(&models.Vote{}).Error
	if err != nil {
		return unavailable("delete question votes", err)
	}
	if err := tx.Where("question_id IN ?", ids).Delete(&models.QuestionTag{}).Error; err != nil {
		return unavailable("delete question tags", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.Question{}).Error; err != nil {
		return unavailable("delete questions", err)
	}
	return nil
}
