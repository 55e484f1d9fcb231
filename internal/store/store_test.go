package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"civiceye/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises behaviour every driver must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("GrievanceRoundTrip", func(t *testing.T) { testGrievanceRoundTrip(t, newStore(t)) })
	t.Run("ListFiltersAndOrder", func(t *testing.T) { testListFiltersAndOrder(t, newStore(t)) })
	t.Run("UpdateStatusCompareAndSet", func(t *testing.T) { testUpdateStatusCAS(t, newStore(t)) })
	t.Run("ConcurrentUpdateStatus", func(t *testing.T) { testConcurrentUpdateStatus(t, newStore(t)) })
	t.Run("FeedbackUniqueness", func(t *testing.T) { testFeedbackUniqueness(t, newStore(t)) })
	t.Run("ConcurrentFeedback", func(t *testing.T) { testConcurrentFeedback(t, newStore(t)) })
	t.Run("Notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("Counts", func(t *testing.T) { testCounts(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
}

func seedUser(t *testing.T, s Store, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Email: uuid.NewString() + "@example.com", Name: "Test", Role: role}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedGrievance(t *testing.T, s Store, userID string, category models.Category, createdAt time.Time) *models.Grievance {
	t.Helper()
	g := &models.Grievance{
		Title:       "Broken pipe",
		Description: "Water leaking on the corner",
		Category:    category,
		Status:      models.StatusPending,
		Priority:    models.PriorityMedium,
		Location:    "Main St 1",
		UserID:      userID,
		ImageURLs:   []string{"https://img.example/1.jpg"},
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	require.NoError(t, s.CreateGrievance(context.Background(), g))
	return g
}

func testGrievanceRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	u := seedUser(t, s, models.RoleCitizen)
	g := seedGrievance(t, s, u.ID, models.CategoryWater, time.Now().UTC())
	require.NotEmpty(t, g.ID)

	got, err := s.GetGrievance(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Title, got.Title)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, []string{"https://img.example/1.jpg"}, got.ImageURLs)

	_, err = s.GetGrievance(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetGrievance(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	byID, err := s.GetGrievancesByIDs(ctx, []string{g.ID, uuid.NewString()})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
	assert.Contains(t, byID, g.ID)
}

func testListFiltersAndOrder(t *testing.T, s Store) {
	ctx := context.Background()
	alice := seedUser(t, s, models.RoleCitizen)
	bob := seedUser(t, s, models.RoleCitizen)
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	first := seedGrievance(t, s, alice.ID, models.CategoryWater, base)
	second := seedGrievance(t, s, alice.ID, models.CategoryRoad, base.Add(time.Minute))
	third := seedGrievance(t, s, bob.ID, models.CategoryWater, base.Add(2*time.Minute))

	rows, err := s.ListGrievances(ctx, GrievanceFilter{CreatorID: alice.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.ID, rows[0].ID, "newest first by default")
	assert.Equal(t, first.ID, rows[1].ID)

	rows, err = s.ListGrievances(ctx, GrievanceFilter{CreatorID: alice.ID, Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, first.ID, rows[0].ID)

	rows, err = s.ListGrievances(ctx, GrievanceFilter{Category: models.CategoryWater, CreatorID: bob.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, third.ID, rows[0].ID)

	from := base.Add(30 * time.Second)
	rows, err = s.ListGrievances(ctx, GrievanceFilter{CreatorID: alice.ID, From: &from, Ascending: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, second.ID, rows[0].ID)

	rows, err = s.ListGrievances(ctx, GrievanceFilter{CreatorID: alice.ID, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)

	rows, err = s.ListGrievances(ctx, GrievanceFilter{CreatorID: "not-a-uuid"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func testUpdateStatusCAS(t *testing.T, s Store) {
	ctx := context.Background()
	u := seedUser(t, s, models.RoleCitizen)
	g := seedGrievance(t, s, u.ID, models.CategoryWater, time.Now().UTC())
	at := time.Now().UTC()

	updated, err := s.UpdateStatus(ctx, StatusChange{
		GrievanceID: g.ID, From: models.StatusPending, To: models.StatusResolved, At: at,
		ResolutionProofURLs: []string{"https://img.example/proof.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, updated.Status)
	assert.Equal(t, []string{"https://img.example/proof.jpg"}, updated.ResolutionProofURLs)
	require.NotNil(t, updated.ResolvedAt)

	// Stale expectation loses.
	_, err = s.UpdateStatus(ctx, StatusChange{GrievanceID: g.ID, From: models.StatusPending, To: models.StatusRejected, At: at})
	assert.ErrorIs(t, err, ErrStatusChanged)

	_, err = s.UpdateStatus(ctx, StatusChange{GrievanceID: uuid.NewString(), From: models.StatusPending, To: models.StatusRejected, At: at})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetGrievance(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, got.Status)
	assert.Empty(t, got.RejectionReason)

	history, err := s.ListStatusHistory(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusPending, history[0].FromStatus)
	assert.Equal(t, models.StatusResolved, history[0].ToStatus)
}

func testConcurrentUpdateStatus(t *testing.T, s Store) {
	ctx := context.Background()
	u := seedUser(t, s, models.RoleCitizen)
	g := seedGrievance(t, s, u.ID, models.CategoryRoad, time.Now().UTC())

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := models.StatusResolved
			if i%2 == 0 {
				to = models.StatusRejected
			}
			_, err := s.UpdateStatus(ctx, StatusChange{GrievanceID: g.ID, From: models.StatusPending, To: to, At: time.Now().UTC()})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrStatusChanged)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	history, err := s.ListStatusHistory(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func testFeedbackUniqueness(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, models.RoleCitizen)
	other := seedUser(t, s, models.RoleCitizen)
	g := seedGrievance(t, s, owner.ID, models.CategoryWater, time.Now().UTC())

	require.NoError(t, s.CreateFeedback(ctx, &models.Feedback{GrievanceID: g.ID, UserID: &owner.ID, Rating: 5}))
	err := s.CreateFeedback(ctx, &models.Feedback{GrievanceID: g.ID, UserID: &owner.ID, Rating: 1})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, s.CreateFeedback(ctx, &models.Feedback{GrievanceID: g.ID, UserID: &other.ID, Rating: 4}))

	// Anonymous rows are not constrained.
	require.NoError(t, s.CreateFeedback(ctx, &models.Feedback{GrievanceID: g.ID, Rating: 3}))
	require.NoError(t, s.CreateFeedback(ctx, &models.Feedback{GrievanceID: g.ID, Rating: 2}))

	rows, err := s.ListFeedback(ctx)
	require.NoError(t, err)
	count := 0
	for _, f := range rows {
		if f.GrievanceID == g.ID {
			count++
		}
	}
	assert.Equal(t, 4, count)
}

func testConcurrentFeedback(t *testing.T, s Store) {
	ctx := context.Background()
	u := seedUser(t, s, models.RoleCitizen)
	g := seedGrievance(t, s, u.ID, models.CategoryNoise, time.Now().UTC())

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.CreateFeedback(ctx, &models.Feedback{
				GrievanceID: g.ID,
				UserID:      &u.ID,
				Rating:      1 + i%5,
				Comments:    fmt.Sprintf("attempt %d", i),
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrDuplicate)
		}
	}
	assert.Equal(t, 1, ok)
}

func testNotifications(t *testing.T, s Store) {
	ctx := context.Background()
	u := seedUser(t, s, models.RoleCitizen)
	other := seedUser(t, s, models.RoleCitizen)
	base := time.Now().UTC().Truncate(time.Second)

	older := &models.Notification{UserID: u.ID, Title: "a", Message: "a", Type: models.NotificationTypeInfo, CreatedAt: base}
	newer := &models.Notification{UserID: u.ID, Title: "b", Message: "b", Type: models.NotificationTypeSuccess, CreatedAt: base.Add(time.Second)}
	foreign := &models.Notification{UserID: other.ID, Title: "c", Message: "c", Type: models.NotificationTypeWarning, CreatedAt: base}
	for _, n := range []*models.Notification{older, newer, foreign} {
		require.NoError(t, s.CreateNotification(ctx, n))
	}

	rows, err := s.ListNotifications(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.ID, rows[0].ID)

	unread, err := s.CountUnread(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	_, err = s.MarkNotificationRead(ctx, foreign.ID, u.ID)
	assert.ErrorIs(t, err, ErrNotFound, "cannot read someone else's notification")

	_, err = s.MarkNotificationRead(ctx, older.ID, u.ID)
	require.NoError(t, err)
	unread, _ = s.CountUnread(ctx, u.ID)
	assert.EqualValues(t, 1, unread)

	changed, err := s.MarkAllNotificationsRead(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)

	deleted, err := s.DeleteNotifications(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	rows, _ = s.ListNotifications(ctx, other.ID, 0)
	assert.Len(t, rows, 1)
}

func testCounts(t *testing.T, s Store) {
	ctx := context.Background()
	u := seedUser(t, s, models.RoleCitizen)
	now := time.Now().UTC()

	seedGrievance(t, s, u.ID, models.CategoryWater, now)
	seedGrievance(t, s, u.ID, models.CategoryWater, now.Add(-10*24*time.Hour))
	road := seedGrievance(t, s, u.ID, models.CategoryRoad, now.Add(-40*24*time.Hour))
	_, err := s.UpdateStatus(ctx, StatusChange{GrievanceID: road.ID, From: models.StatusPending, To: models.StatusInProgress, At: now})
	require.NoError(t, err)

	byStatus, err := s.CountByStatus(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, byStatus[models.StatusPending])
	assert.EqualValues(t, 1, byStatus[models.StatusInProgress])

	breakdown, err := s.CountBreakdown(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, breakdown.ByCategory[string(models.CategoryWater)], int64(2))
	assert.GreaterOrEqual(t, breakdown.ByStatus[models.StatusInProgress], int64(1))
	var byCategory, byStatusTotal int64
	for _, n := range breakdown.ByCategory {
		byCategory += n
	}
	for _, n := range breakdown.ByStatus {
		byStatusTotal += n
	}
	assert.Equal(t, breakdown.Total, byCategory)
	assert.Equal(t, breakdown.Total, byStatusTotal)

	malformed, err := s.CountByStatus(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Empty(t, malformed)

	recent, err := s.CountGrievancesSince(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, recent, int64(1))
}

func testUsers(t *testing.T, s Store) {
	ctx := context.Background()
	u := &models.User{Email: "dup-" + uuid.NewString() + "@example.com", Name: "A", Role: models.RoleCitizen}
	require.NoError(t, s.CreateUser(ctx, u))

	err := s.CreateUser(ctx, &models.User{Email: u.Email, Name: "B", Role: models.RoleCitizen})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := s.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUser(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	renamed, err := s.UpdateUserName(ctx, u.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Name)
	_, err = s.UpdateUserName(ctx, uuid.NewString(), "x")
	assert.ErrorIs(t, err, ErrNotFound)

	total, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(1))
}
