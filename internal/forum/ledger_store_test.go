package forum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/testutil"
)

func voteRows(t *testing.T, db *gorm.DB, targetID uint, kind TargetKind) []models.Vote {
	t.Helper()
	var votes []models.Vote
	require.NoError(t, db.Where("target_id = ? AND target_kind = ?", targetID, string(kind)).Find(&votes).Error)
	return votes
}

func ledgerSum(votes []models.Vote) int {
	sum := 0
	for _, v := range votes {
		sum += Direction(v.Direction).weight()
	}
	return sum
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	log := zap.NewNop().Sugar()
	ctx := context.Background()

	author := testutil.CreateTestUser(t, db, "author")
	voter := testutil.CreateTestUser(t, db, "voter")
	q := testutil.CreateTestQuestion(t, db, author.ID, 0)
	a := testutil.CreateTestAnswer(t, db, q.ID, voter.ID, 0)

	require.NoError(t, database.Close(db))

	_, err := NewLedger(db, log).CastVote(ctx, voter.ID, q.ID, KindQuestion, Up)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewAcceptance(db, &recordingNotifier{}, log).Accept(ctx, author.ID, a.ID)
	assert.ErrorIs(t, err, ErrUnavailable)

	mod := NewModerator(db, log)
	assert.ErrorIs(t, mod.DeleteAnswer(ctx, a.ID), ErrUnavailable)
	assert.ErrorIs(t, mod.DeleteQuestion(ctx, q.ID), ErrUnavailable)
	assert.ErrorIs(t, mod.DeleteUser(ctx, voter.ID), ErrUnavailable)
}

func TestCastVoteRollsBackWhenCounterUpdateFails(t *testing.T) {
	ledger, db := newLedger(t)
	ctx := context.Background()

	author := testutil.CreateTestUser(t, db, "author")
	voter := testutil.CreateTestUser(t, db, "voter")
	q := testutil.CreateTestQuestion(t, db, author.ID, 3)

	err := db.Callback().Update().Before("gorm:update").Register("test:fail_question_counter", func(tx *gorm.DB) {
		if tx.Statement.Table == "questions" {
			_ = tx.AddError(errors.New("disk I/O error"))
		}
	})
	require.NoError(t, err)

	_, err = ledger.CastVote(ctx, voter.ID, q.ID, KindQuestion, Up)
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.Empty(t, voteRows(t, db, q.ID, KindQuestion))
	assert.Equal(t, 3, testutil.ReloadQuestion(t, db, q.ID).Votes)
}

func TestCastVoteRetriesAfterConcurrentInsert(t *testing.T) {
	ledger, db := newLedger(t)
	ctx := context.Background()

	author := testutil.CreateTestUser(t, db, "author")
	voter := testutil.CreateTestUser(t, db, "voter")
	q := testutil.CreateTestQuestion(t, db, author.ID, 0)

	// Another writer lands the same vote row between the lookup and the
	// insert of the first attempt.
	hits := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:race_vote_insert", func(tx *gorm.DB) {
		if tx.Statement.Table != "votes" || hits > 0 {
			return
		}
		hits++
		now := time.Now().UTC()
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"INSERT INTO votes (user_id, target_id, target_kind, direction, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			voter.ID, q.ID, string(KindQuestion), string(Up), now, now)
		if err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)

	res, err := ledger.CastVote(ctx, voter.ID, q.ID, KindQuestion, Up)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	assert.Equal(t, VoteResult{Delta: 1, Votes: 1, UserVote: VotedUp}, res)

	votes := voteRows(t, db, q.ID, KindQuestion)
	require.Len(t, votes, 1)
	assert.Equal(t, ledgerSum(votes), testutil.ReloadQuestion(t, db, q.ID).Votes)
}

func TestConcurrentVotesKeepCounterEqualToLedger(t *testing.T) {
	ledger, db := newLedger(t)
	ctx := context.Background()

	author := testutil.CreateTestUser(t, db, "author")
	q := testutil.CreateTestQuestion(t, db, author.ID, 0)

	voters := make([]models.User, 8)
	for i := range voters {
		voters[i] = testutil.CreateTestUser(t, db, fmt.Sprintf("voter%d", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(voters)*3)
	for i, v := range voters {
		wg.Add(1)
		go func(i int, userID uint) {
			defer wg.Done()
			dirs := []Direction{Up, Down, Up}
			if i%2 == 1 {
				dirs = []Direction{Down, Down, Up}
			}
			for _, d := range dirs {
				if _, err := ledger.CastVote(ctx, userID, q.ID, KindQuestion, d); err != nil {
					errs <- err
				}
			}
		}(i, v.ID)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected vote error: %v", err)
	}

	votes := voteRows(t, db, q.ID, KindQuestion)
	assert.Len(t, votes, len(voters))
	assert.Equal(t, len(voters), ledgerSum(votes))
	assert.Equal(t, ledgerSum(votes), testutil.ReloadQuestion(t, db, q.ID).Votes)
}
