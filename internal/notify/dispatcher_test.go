package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
	"github.com/emilythestrangee/stackit/backend/internal/notify/mocks"
	"github.com/emilythestrangee/stackit/backend/internal/testutil"
)

func TestDispatcherStoresAndFansOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db, "reader")
	require.NoError(t, db.Model(&user).Update("phone", "+15550001111").Error)

	first := mocks.NewMockSink(ctrl)
	second := mocks.NewMockSink(ctrl)
	want := notify.Recipient{ID: user.ID, Username: "reader", Phone: "+15550001111"}

	first.EXPECT().
		Deliver(gomock.Any(), want, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ notify.Recipient, n models.Notification) error {
			assert.NotZero(t, n.ID, "sinks see the stored row")
			assert.Equal(t, "New Answer", n.Title)
			return nil
		})
	second.EXPECT().Deliver(gomock.Any(), want, gomock.Any()).Return(errors.New("unreachable"))
	second.EXPECT().Name().Return("second").AnyTimes()

	d := notify.NewDispatcher(db, zap.NewNop().Sugar(), first, second)
	err := d.Notify(context.Background(), models.Notification{
		UserID:  user.ID,
		Type:    models.NotificationAnswer,
		Title:   "New Answer",
		Message: "Someone answered your question",
		Link:    "/questions/1",
		IsRead:  true,
	})
	require.NoError(t, err, "sink failures are not returned")

	var stored []models.Notification
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].IsRead)
	assert.Equal(t, "/questions/1", stored[0].Link)
}

func TestDispatcherWithoutSinks(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db, "reader")

	d := notify.NewDispatcher(db, zap.NewNop().Sugar())
	require.NoError(t, d.Notify(context.Background(), models.Notification{
		UserID: user.ID, Type: models.NotificationAccepted, Title: "Answer Accepted", Message: "Your answer was accepted!",
	}))
	require.NoError(t, d.Close())

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
