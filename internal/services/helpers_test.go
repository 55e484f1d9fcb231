package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"civiceye/internal/models"
	"civiceye/internal/store"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store         *store.MemoryStore
	grievances    *GrievanceService
	notifications *NotificationService
	feedback      *FeedbackService
	stats         *StatsService
	mailer        *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	mailer := &fakeMailer{}
	notifications := NewNotificationService(st, st, mailer)
	return &testEnv{
		store:         st,
		grievances:    NewGrievanceService(st, notifications),
		notifications: notifications,
		feedback:      NewFeedbackService(st, st),
		stats:         NewStatsService(st, st),
		mailer:        mailer,
	}
}

func (e *testEnv) citizen(t *testing.T, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: email, Role: models.RoleCitizen}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) grievance(t *testing.T, creatorID string, category models.Category) *models.Grievance {
	t.Helper()
	g, err := e.grievances.Create(context.Background(), creatorID, CreateGrievanceInput{
		Title:       "Leaking main",
		Description: "Water has been leaking for two days",
		Category:    category,
		Location:    "12 Lake Road",
	})
	require.NoError(t, err)
	return g
}

func (e *testEnv) resolved(t *testing.T, creatorID string) *models.Grievance {
	t.Helper()
	g := e.grievance(t, creatorID, models.CategoryWater)
	_, err := e.grievances.SetStatus(context.Background(), "admin", g.ID, SetStatusInput{Status: models.StatusResolved})
	require.NoError(t, err)
	return g
}

func (e *testEnv) notificationsFor(t *testing.T, userID string) []models.Notification {
	t.Helper()
	rows, err := e.notifications.List(context.Background(), userID, 0)
	require.NoError(t, err)
	return rows
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) SendStatusEmail(to string, g *models.Grievance, n *models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+n.Title)
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// brokenNotifications fails every insert.
type brokenNotifications struct {
	store.NotificationStore
}

func (brokenNotifications) CreateNotification(ctx context.Context, n *models.Notification) error {
	return errors.New("connection reset")
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
