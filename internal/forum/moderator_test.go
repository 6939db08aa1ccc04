package forum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/testutil"
)

func TestDeleteUserRevertsCounters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	log := zap.NewNop().Sugar()
	ledger := NewLedger(db, log)
	mod := NewModerator(db, log)
	ctx := context.Background()

	author := testutil.CreateTestUser(t, db, "author")
	leaver := testutil.CreateTestUser(t, db, "leaver")
	stayer := testutil.CreateTestUser(t, db, "stayer")
	q := testutil.CreateTestQuestion(t, db, author.ID, 0)
	a := testutil.CreateTestAnswer(t, db, q.ID, author.ID, 0)
	leaverQ := testutil.CreateTestQuestion(t, db, leaver.ID, 0)

	for _, v := range []struct {
		user uint
		id   uint
		kind TargetKind
		dir  Direction
	}{
		{leaver.ID, q.ID, KindQuestion, Up},
		{leaver.ID, a.ID, KindAnswer, Down},
		{stayer.ID, q.ID, KindQuestion, Up},
		{stayer.ID, leaverQ.ID, KindQuestion, Up},
	} {
		_, err := ledger.CastVote(ctx, v.user, v.id, v.kind, v.dir)
		require.NoError(t, err)
	}
	require.NoError(t, db.Create(&models.Notification{UserID: leaver.ID, Type: models.NotificationAnswer, Title: "t", Message: "m"}).Error)

	require.NoError(t, mod.DeleteUser(ctx, leaver.ID))

	assert.Equal(t, 1, testutil.ReloadQuestion(t, db, q.ID).Votes)
	assert.Equal(t, 0, testutil.ReloadAnswer(t, db, a.ID).Votes)

	var count int64
	require.NoError(t, db.Model(&models.Vote{}).Where("user_id = ?", leaver.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&models.Vote{}).Where("target_id = ? AND target_kind = ?", leaverQ.ID, string(KindQuestion)).Count(&count).Error)
	assert.Zero(t, count, "votes on the user's questions go with them")
	require.NoError(t, db.Model(&models.Question{}).Where("user_id = ?", leaver.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", leaver.ID).Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, mod.DeleteUser(ctx, leaver.ID), ErrNotFound)
}

func TestDeleteAnswerClearsAcceptance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	log := zap.NewNop().Sugar()
	acc := NewAcceptance(db, &recordingNotifier{}, log)
	mod := NewModerator(db, log)
	ctx := context.Background()

	asker := testutil.CreateTestUser(t, db, "asker")
	helper := testutil.CreateTestUser(t, db, "helper")
	q := testutil.CreateTestQuestion(t, db, asker.ID, 0)
	a := testutil.CreateTestAnswer(t, db, q.ID, helper.ID, 0)

	_, err := acc.Accept(ctx, asker.ID, a.ID)
	require.NoError(t, err)

	require.NoError(t, mod.DeleteAnswer(ctx, a.ID))
	assert.Nil(t, testutil.ReloadQuestion(t, db, q.ID).AcceptedAnswerID)
	assert.ErrorIs(t, mod.DeleteAnswer(ctx, a.ID), ErrNotFound)
}

func TestDeleteQuestionCascades(t *testing.T) {
	db := testutil.SetupTestDB(t)
	log := zap.NewNop().Sugar()
	ledger := NewLedger(db, log)
	mod := NewModerator(db, log)
	ctx := context.Background()

	asker := testutil.CreateTestUser(t, db, "asker")
	voter := testutil.CreateTestUser(t, db, "voter")
	q := testutil.CreateTestQuestion(t, db, asker.ID, 0)
	a := testutil.CreateTestAnswer(t, db, q.ID, asker.ID, 0)
	require.NoError(t, db.Create(&models.QuestionTag{QuestionID: q.ID, TagID: 1}).Error)

	_, err := ledger.CastVote(ctx, voter.ID, q.ID, KindQuestion, Up)
	require.NoError(t, err)
	_, err = ledger.CastVote(ctx, voter.ID, a.ID, KindAnswer, Up)
	require.NoError(t, err)

	require.NoError(t, mod.DeleteQuestion(ctx, q.ID))

	for _, model := range []any{&models.Vote{}, &models.Answer{}, &models.QuestionTag{}, &models.Question{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}
	assert.ErrorIs(t, mod.DeleteQuestion(ctx, q.ID), ErrNotFound)
}
