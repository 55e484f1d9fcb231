// Package store persists grievances, notifications, feedback and users.
//
// Two drivers implement Store: a gorm/postgres one for deployments and an
// in-memory one for local development and tests. Both report missing rows as
// ErrNotFound and uniqueness violations as ErrDuplicate.
package store

import (
	"context"
	"errors"
	"time"

	"civiceye/internal/models"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate record")
	// ErrStatusChanged means the row no longer holds the status a conditional
	// update expected. The caller should re-read and decide again.
	ErrStatusChanged = errors.New("store: status changed concurrently")
)

type GrievanceFilter struct {
	CreatorID string
	Status    models.GrievanceStatus
	Category  models.Category
	Priority  models.Priority
	From      *time.Time // created_at >= From
	To        *time.Time // created_at < To
	Ascending bool
	Limit     int
	Offset    int
}

// StatusChange describes one conditional status write.
type StatusChange struct {
	GrievanceID string
	From        models.GrievanceStatus
	To          models.GrievanceStatus
	At          time.Time
	ActorID     string
	Note        string

	// Written only when To is resolved.
	ResolutionProofURLs []string
	// Written only when To is rejected.
	RejectionReason string
}

type GrievanceStore interface {
	CreateGrievance(ctx context.Context, g *models.Grievance) error
	GetGrievance(ctx context.Context, id string) (*models.Grievance, error)
	GetGrievancesByIDs(ctx context.Context, ids []string) (map[string]*models.Grievance, error)
	ListGrievances(ctx context.Context, f GrievanceFilter) ([]models.Grievance, error)
	// UpdateStatus applies change only while the stored status equals
	// change.From and appends a history row in the same unit of work.
	UpdateStatus(ctx context.Context, change StatusChange) (*models.Grievance, error)
	ListStatusHistory(ctx context.Context, grievanceID string) ([]models.GrievanceStatusLog, error)

	// CountByStatus counts grievances per status; an empty creatorID counts all.
	CountByStatus(ctx context.Context, creatorID string) (map[models.GrievanceStatus]int64, error)
	// CountBreakdown counts every grievance by status and by category from a
	// single read.
	CountBreakdown(ctx context.Context) (*Breakdown, error)
	CountGrievancesSince(ctx context.Context, since time.Time) (int64, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotifications(ctx context.Context, userID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
}

type FeedbackStore interface {
	CreateFeedback(ctx context.Context, f *models.Feedback) error
	ListFeedback(ctx context.Context) ([]models.Feedback, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserName(ctx context.Context, id, name string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
	CountUsersSince(ctx context.Context, since time.Time) (int64, error)
}

type Store interface {
	GrievanceStore
	NotificationStore
	FeedbackStore
	UserStore
	Ping(ctx context.Context) error
}

// Breakdown holds per-status and per-category totals over the same rows.
type Breakdown struct {
	Total      int64
	ByStatus   map[models.GrievanceStatus]int64
	ByCategory map[string]int64
}

func newBreakdown() *Breakdown {
	return &Breakdown{
		ByStatus:   map[models.GrievanceStatus]int64{},
		ByCategory: map[string]int64{},
	}
}

func (b *Breakdown) add(status models.GrievanceStatus, category string, n int64) {
	b.Total += n
	b.ByStatus[status] += n
	b.ByCategory[category] += n
}
