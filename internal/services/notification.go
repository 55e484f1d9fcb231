package services

import (
	"context"
	"errors"
	"fmt"

	"civiceye/internal/apperror"
	"civiceye/internal/logger"
	"civiceye/internal/metrics"
	"civiceye/internal/models"
	"civiceye/internal/store"

	"github.com/sirupsen/logrus"
)

const defaultNotificationLimit = 50

// StatusMailer sends the e-mail copy of a status notification.
type StatusMailer interface {
	SendStatusEmail(to string, g *models.Grievance, n *models.Notification)
}

// NotificationService is both the dispatcher invoked after status changes and
// the read side used by the notification endpoints.
type NotificationService struct {
	store  store.NotificationStore
	users  store.UserStore
	mailer StatusMailer
}

func NewNotificationService(s store.NotificationStore, users store.UserStore, mailer StatusMailer) *NotificationService {
	return &NotificationService{store: s, users: users, mailer: mailer}
}

// BuildStatusNotification returns the notification owed to the creator for a
// transition into g.Status, or nil when none is owed.
func BuildStatusNotification(g *models.Grievance) *models.Notification {
	n := &models.Notification{
		UserID:      g.UserID,
		GrievanceID: &g.ID,
	}
	switch g.Status {
	case models.StatusResolved:
		n.Type = models.NotificationTypeSuccess
		n.Title = "Grievance resolved"
		n.Message = fmt.Sprintf("Your grievance %q has been resolved. Thank you for helping improve the city.", g.Title)
	case models.StatusRejected:
		n.Type = models.NotificationTypeWarning
		n.Title = "Grievance rejected"
		n.Message = fmt.Sprintf("Your grievance %q was rejected.", g.Title)
		if g.RejectionReason != "" {
			n.Message += " Reason: " + g.RejectionReason
		}
	default:
		return nil
	}
	return n
}

// StatusChanged implements Notifier. Failures are logged and counted only.
func (s *NotificationService) StatusChanged(ctx context.Context, g *models.Grievance, from models.GrievanceStatus) {
	n := BuildStatusNotification(g)
	if n == nil {
		return
	}

	entry := logger.Log.WithFields(logrus.Fields{
		"grievance_id": g.ID,
		"user_id":      g.UserID,
		"from":         from,
		"to":           g.Status,
	})

	if err := s.store.CreateNotification(ctx, n); err != nil {
		metrics.NotificationsDispatched.WithLabelValues(string(n.Type), "failed").Inc()
		entry.WithError(err).Error("Failed to create status notification")
		return
	}
	metrics.NotificationsDispatched.WithLabelValues(string(n.Type), "created").Inc()

	if s.mailer == nil || s.users == nil {
		return
	}
	user, err := s.users.GetUser(ctx, g.UserID)
	if err != nil {
		entry.WithError(err).Warn("Skipping status e-mail, creator lookup failed")
		return
	}
	if user.Email != "" {
		s.mailer.SendStatusEmail(user.Email, g, n)
	}
}

func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultNotificationLimit
	}
	rows, err := s.store.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	return rows, nil
}

// MarkRead marks one of userID's notifications read. Another user's
// notification is reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.store.MarkNotificationRead(ctx, id, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("notification")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	n.IsRead = true
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, apperror.Internal(err)
	}
	return n, nil
}

func (s *NotificationService) Clear(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.DeleteNotifications(ctx, userID)
	if err != nil {
		return 0, apperror.Internal(err)
	}
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "deleted": n}).Debug("Notifications cleared")
	return n, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperror.Internal(err)
	}
	return n, nil
}
