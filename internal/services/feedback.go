package services

import (
	"context"
	"errors"
	"time"

	"civiceye/internal/apperror"
	"civiceye/internal/logger"
	"civiceye/internal/metrics"
	"civiceye/internal/models"
	"civiceye/internal/store"
	"civiceye/internal/utils"

	"github.com/sirupsen/logrus"
)

const maxCommentLength = 2000

type FeedbackService struct {
	feedback   store.FeedbackStore
	grievances store.GrievanceStore
}

func NewFeedbackService(f store.FeedbackStore, g store.GrievanceStore) *FeedbackService {
	return &FeedbackService{feedback: f, grievances: g}
}

type SubmitFeedbackInput struct {
	Rating   int    `json:"rating"`
	Comments string `json:"comments"`
}

// Submit records a rating for a resolved grievance. userID may be empty for
// anonymous feedback; otherwise the (grievance, user) pair must be new.
func (s *FeedbackService) Submit(ctx context.Context, grievanceID, userID string, in SubmitFeedbackInput) (*models.Feedback, error) {
	if in.Rating < 1 || in.Rating > 5 {
		metrics.FeedbackSubmissions.WithLabelValues("invalid").Inc()
		return nil, apperror.Validation("rating must be between 1 and 5")
	}
	comments := utils.StripTags(in.Comments)
	if len([]rune(comments)) > maxCommentLength {
		metrics.FeedbackSubmissions.WithLabelValues("invalid").Inc()
		return nil, apperror.Validation("comments are too long")
	}

	g, err := s.grievances.GetGrievance(ctx, grievanceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("grievance")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if g.Status != models.StatusResolved {
		metrics.FeedbackSubmissions.WithLabelValues("not_resolved").Inc()
		return nil, apperror.PreconditionFailed("grievance not resolved")
	}

	f := &models.Feedback{
		GrievanceID: grievanceID,
		Rating:      in.Rating,
		Comments:    comments,
	}
	if userID != "" {
		f.UserID = &userID
	}

	// The unique index decides; there is no separate existence check.
	if err := s.feedback.CreateFeedback(ctx, f); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			metrics.FeedbackSubmissions.WithLabelValues("duplicate").Inc()
			return nil, apperror.Conflict("feedback already submitted")
		}
		return nil, apperror.Internal(err)
	}

	metrics.FeedbackSubmissions.WithLabelValues("created").Inc()
	logger.Log.WithFields(logrus.Fields{
		"grievance_id": grievanceID,
		"user_id":      userID,
		"rating":       in.Rating,
	}).Info("Feedback recorded")
	return f, nil
}

// ListForAdmin attaches title, status and category of each grievance. A
// grievance that cannot be found leaves the context nil.
func (s *FeedbackService) ListForAdmin(ctx context.Context) ([]models.FeedbackWithGrievance, error) {
	rows, err := s.feedback.ListFeedback(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	ids := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, f := range rows {
		if !seen[f.GrievanceID] {
			seen[f.GrievanceID] = true
			ids = append(ids, f.GrievanceID)
		}
	}

	grievances, err := s.grievances.GetGrievancesByIDs(ctx, ids)
	if err != nil {
		logger.Log.WithError(err).Warn("Grievance lookup for feedback listing failed")
		grievances = nil
	}

	out := make([]models.FeedbackWithGrievance, 0, len(rows))
	for _, f := range rows {
		item := models.FeedbackWithGrievance{Feedback: f}
		if g, ok := grievances[f.GrievanceID]; ok {
			item.Grievance = &models.GrievanceContext{Title: g.Title, Status: g.Status, Category: g.Category}
		}
		out = append(out, item)
	}
	return out, nil
}

// PublicFeedback is the transparency view. The submitter id is the only
// identifying field and must not be displayed as-is.
type PublicFeedback struct {
	ID          string    `json:"id"`
	GrievanceID string    `json:"grievance_id"`
	UserID      string    `json:"user_id,omitempty"`
	Rating      int       `json:"rating"`
	Comments    string    `json:"comments,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *FeedbackService) ListPublic(ctx context.Context) ([]PublicFeedback, error) {
	rows, err := s.feedback.ListFeedback(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	out := make([]PublicFeedback, 0, len(rows))
	for _, f := range rows {
		if f.Comments == "" && f.Rating == 0 {
			continue
		}
		p := PublicFeedback{
			ID:          f.ID,
			GrievanceID: f.GrievanceID,
			Rating:      f.Rating,
			Comments:    f.Comments,
			CreatedAt:   f.CreatedAt,
		}
		if f.UserID != nil {
			p.UserID = *f.UserID
		}
		out = append(out, p)
	}
	return out, nil
}
