package notifications

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

func TestRepositoryReadStateIsVendorScoped(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	mine := dbtest.Vendor(t, db, "GH", 5.6, -0.19)
	other := dbtest.Vendor(t, db, "GH", 5.6, -0.19)

	first := &models.Notification{VendorID: mine.ID, Type: enums.NotificationTypeNewOrder, Title: "a", Message: "a"}
	second := &models.Notification{VendorID: mine.ID, Type: enums.NotificationTypeNewOrder, Title: "b", Message: "b"}
	foreign := &models.Notification{VendorID: other.ID, Type: enums.NotificationTypePayoutResult, Title: "c", Message: "c"}
	for _, n := range []*models.Notification{first, second, foreign} {
		require.NoError(t, repo.Create(t.Context(), n))
	}
	now := time.Now().UTC()

	mark, err := repo.MarkRead(t.Context(), other.ID, first.ID, now)
	require.NoError(t, err)
	assert.False(t, mark.Found)

	mark, err = repo.MarkRead(t.Context(), mine.ID, first.ID, now)
	require.NoError(t, err)
	assert.True(t, mark.Found)
	assert.True(t, mark.Updated)

	mark, err = repo.MarkRead(t.Context(), mine.ID, first.ID, now)
	require.NoError(t, err)
	assert.True(t, mark.Found)
	assert.False(t, mark.Updated)

	unread, _, err := repo.List(t.Context(), listNotificationsParams{VendorID: mine.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, second.ID, unread[0].ID)

	count, err := repo.MarkAllRead(t.Context(), mine.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	unread, _, err = repo.List(t.Context(), listNotificationsParams{VendorID: other.ID, UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 1)
}

func TestRepositoryFindVendor(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	vendor := dbtest.Vendor(t, db, "GH", 5.6, -0.19)

	found, err := repo.FindVendor(t.Context(), vendor.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, vendor.Name, found.Name)

	missing, err := repo.FindVendor(t.Context(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryDeleteReadBeforeKeepsUnread(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	vendor := dbtest.Vendor(t, db, "GH", 5.6, -0.19)

	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)
	staleRead := &models.Notification{VendorID: vendor.ID, Type: enums.NotificationTypeNewOrder, Title: "old", Message: "old", ReadAt: &old}
	freshRead := &models.Notification{VendorID: vendor.ID, Type: enums.NotificationTypeNewOrder, Title: "new", Message: "new", ReadAt: &recent}
	unread := &models.Notification{VendorID: vendor.ID, Type: enums.NotificationTypeNewOrder, Title: "unread", Message: "unread"}
	for _, n := range []*models.Notification{staleRead, freshRead, unread} {
		require.NoError(t, repo.Create(t.Context(), n))
	}

	deleted, err := repo.DeleteReadBefore(t.Context(), nil, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	left, _, err := repo.List(t.Context(), listNotificationsParams{VendorID: vendor.ID})
	require.NoError(t, err)
	assert.Len(t, left, 2)
}
