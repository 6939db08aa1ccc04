package forum

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// VoteResult is returned by CastVote so callers can update derived
// counters without reading the target again.
type VoteResult struct {
	Delta    int       `json:"delta"`
	Votes    int       `json:"votes"`
	UserVote VoteState `json:"userVote"`
}

// Ledger records one vote per (user, target, kind) and keeps the target's
// denormalized votes counter in step with it.
type Ledger struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewLedger(db *gorm.DB, log *zap.SugaredLogger) *Ledger {
	return &Ledger{db: db, log: log}
}

type voteTarget struct {
	ID     uint
	UserID uint
	Votes  int
}

// errConcurrentInsert marks a lost race on the first vote for a target.
var errConcurrentInsert = errors.New("concurrent vote insert")

// CastVote applies direction for userID on the target and returns the
// counter delta it applied.
func (l *Ledger) CastVote(ctx context.Context, userID, targetID uint, kind TargetKind, direction Direction) (VoteResult, error) {
	if !kind.Valid() {
		return VoteResult{}, fmt.Errorf("%w: unknown target kind %q", ErrInvalid, kind)
	}
	if _, err := ParseDirection(string(direction)); err != nil {
		return VoteResult{}, err
	}

	var (
		res VoteResult
		err error
	)
	// The vote row lookup and the insert are not atomic on their own; a
	// second attempt sees the row the winner committed.
	for attempt := 0; attempt < 2; attempt++ {
		res, err = l.castVote(ctx, userID, targetID, kind, direction)
		if !errors.Is(err, errConcurrentInsert) {
			break
		}
		l.log.Debugw("retrying vote after concurrent insert", "user_id", userID, "target_id", targetID, "kind", kind)
	}
	if errors.Is(err, errConcurrentInsert) {
		return VoteResult{}, unavailable("cast vote", err)
	}
	if err != nil {
		return VoteResult{}, err
	}

	l.log.Debugw("vote cast",
		"user_id", userID, "target_id", targetID, "kind", kind,
		"direction", direction, "delta", res.Delta, "votes", res.Votes)
	return res, nil
}

func (l *Ledger) castVote(ctx context.Context, userID, targetID uint, kind TargetKind, direction Direction) (VoteResult, error) {
	var res VoteResult

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target voteTarget
		q := tx.Table(kind.table()).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "user_id", "votes").
			Where("id = ?", targetID).
			Limit(1).
			Scan(&target)
		if q.Error != nil {
			return unavailable("load "+string(kind), q.Error)
		}
		if q.RowsAffected == 0 {
			return fmt.Errorf("%w: %s %d not found", ErrNotFound, kind, targetID)
		}
		if target.UserID == userID {
			return fmt.Errorf("%w: you cannot vote on your own %s", ErrForbidden, kind)
		}

		current := NoVote
		var existing models.Vote
		err := tx.Where("user_id = ? AND target_id = ? AND target_kind = ?", userID, targetID, string(kind)).
			Take(&existing).Error
		switch {
		case err == nil:
			current = VoteState(existing.Direction)
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return unavailable("load vote", err)
		}

		step := Transition(current, direction)
		switch step.Action {
		case ActionInsert:
			vote := models.Vote{
				UserID:     userID,
				TargetID:   targetID,
				TargetKind: string(kind),
				Direction:  string(direction),
			}
			if err := tx.Create(&vote).Error; err != nil {
				if database.IsUniqueViolation(err) {
					return errConcurrentInsert
				}
				return unavailable("insert vote", err)
			}
		case ActionDelete:
			if err := tx.Delete(&existing).Error; err != nil {
				return unavailable("delete vote", err)
			}
		case ActionUpdate:
			if err := tx.Model(&existing).Update("direction", string(direction)).Error; err != nil {
				return unavailable("update vote", err)
			}
		}

		if err := applyDelta(tx, kind, targetID, step.Delta); err != nil {
			return err
		}

		res = VoteResult{Delta: step.Delta, Votes: target.Votes + step.Delta, UserVote: step.Next}
		return nil
	})
	return res, storeError("cast vote tx", err)
}

// applyDelta adjusts a target's votes counter in place.
func applyDelta(tx *gorm.DB, kind TargetKind, targetID uint, delta int) error {
	if delta == 0 {
		return nil
	}
	err := tx.Table(kind.table()).
		Where("id = ?", targetID).
		UpdateColumn("votes", gorm.Expr("votes + ?", delta)).Error
	if err != nil {
		return unavailable("update "+string(kind)+" votes", err)
	}
	return nil
}

// UserVotes returns the caller's votes keyed by target id for one kind.
func (l *Ledger) UserVotes(ctx context.Context, userID uint, kind TargetKind, targetIDs []uint) (map[uint]VoteState, error) {
	out := make(map[uint]VoteState, len(targetIDs))
	if len(targetIDs) == 0 {
		return out, nil
	}

	var votes []models.Vote
	err := l.db.WithContext(ctx).
		Select("target_id", "direction").
		Where("user_id = ? AND target_kind = ? AND target_id IN ?", userID, string(kind), targetIDs).
		Find(&votes).Error
	if err != nil {
		return nil, unavailable("load user votes", err)
	}
	for _, v := range votes {
		out[v.TargetID] = VoteState(v.Direction)
	}
	return out, nil
}
