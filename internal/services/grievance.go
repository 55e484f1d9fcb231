package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"civiceye/internal/apperror"
	"civiceye/internal/logger"
	"civiceye/internal/metrics"
	"civiceye/internal/models"
	"civiceye/internal/store"
	"civiceye/internal/utils"

	"github.com/sirupsen/logrus"
)

const (
	maxTitleLength    = 200
	maxReasonLength   = 1000
	maxAttachedImages = 10
	// At most two transitions can ever commit for one grievance, so a writer
	// loses the compare-and-set at most twice.
	maxStatusAttempts = 5
)

// Notifier receives committed status changes.
type Notifier interface {
	StatusChanged(ctx context.Context, g *models.Grievance, from models.GrievanceStatus)
}

type GrievanceService struct {
	store    store.GrievanceStore
	notifier Notifier
	now      func() time.Time
}

func NewGrievanceService(s store.GrievanceStore, n Notifier) *GrievanceService {
	return &GrievanceService{store: s, notifier: n, now: time.Now}
}

type CreateGrievanceInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    models.Category `json:"category"`
	Priority    models.Priority `json:"priority"`
	Location    string          `json:"location"`
	Latitude    *float64        `json:"latitude"`
	Longitude   *float64        `json:"longitude"`
	ImageURLs   []string        `json:"image_urls"`
	AudioURL    string          `json:"audio_url"`
}

func (s *GrievanceService) Create(ctx context.Context, creatorID string, in CreateGrievanceInput) (*models.Grievance, error) {
	if creatorID == "" {
		return nil, apperror.Validation("creator id is required")
	}

	title := utils.StripTags(in.Title)
	description := strings.TrimSpace(in.Description)
	location := utils.StripTags(in.Location)

	switch {
	case title == "":
		return nil, apperror.Validation("title is required")
	case len([]rune(title)) > maxTitleLength:
		return nil, apperror.Validation(fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	case description == "":
		return nil, apperror.Validation("description is required")
	case !in.Category.IsValid():
		return nil, apperror.Validation("unknown category").WithDetails(map[string]string{"category": string(in.Category)})
	}

	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, apperror.Validation("latitude and longitude must be given together")
	}
	if in.Latitude != nil {
		if *in.Latitude < -90 || *in.Latitude > 90 || *in.Longitude < -180 || *in.Longitude > 180 {
			return nil, apperror.Validation("coordinates out of range")
		}
		if location == "" {
			location = fmt.Sprintf("%.6f, %.6f", *in.Latitude, *in.Longitude)
		}
	}
	if location == "" {
		return nil, apperror.Validation("location is required")
	}

	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
		if in.Category == models.CategoryEmergency {
			priority = models.PriorityEmergency
		}
	}
	if !priority.IsValid() {
		return nil, apperror.Validation("unknown priority").WithDetails(map[string]string{"priority": string(priority)})
	}

	if len(in.ImageURLs) > maxAttachedImages {
		return nil, apperror.Validation(fmt.Sprintf("at most %d images may be attached", maxAttachedImages))
	}
	if err := validateURLs("image_urls", in.ImageURLs); err != nil {
		return nil, err
	}
	if in.AudioURL != "" {
		if err := validateURLs("audio_url", []string{in.AudioURL}); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	g := &models.Grievance{
		Title:       title,
		Description: description,
		Category:    in.Category,
		Status:      models.StatusPending,
		Priority:    priority,
		Location:    location,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		UserID:      creatorID,
		ImageURLs:   in.ImageURLs,
		AudioURL:    in.AudioURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateGrievance(ctx, g); err != nil {
		return nil, apperror.Internal(err)
	}

	metrics.GrievancesCreated.WithLabelValues(string(g.Category)).Inc()
	entry := logger.Log.WithFields(logrus.Fields{
		"grievance_id": g.ID,
		"user_id":      creatorID,
		"category":     g.Category,
	})
	if g.Category == models.CategoryEmergency {
		entry.Warn("Emergency grievance reported")
	} else {
		entry.Info("Grievance created")
	}
	return g, nil
}

func validateURLs(field string, urls []string) error {
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperror.Validation("invalid url in " + field).WithDetails(map[string]string{field: raw})
		}
	}
	return nil
}

func (s *GrievanceService) Get(ctx context.Context, id string) (*models.Grievance, error) {
	g, err := s.store.GetGrievance(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("grievance")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return g, nil
}

// GetDetail is Get plus the rendered description.
func (s *GrievanceService) GetDetail(ctx context.Context, id string) (*models.Grievance, error) {
	g, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	g.DescriptionHTML = utils.RenderMarkdown(g.Description)
	return g, nil
}

func (s *GrievanceService) List(ctx context.Context, f store.GrievanceFilter) ([]models.Grievance, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, apperror.Validation("unknown status filter")
	}
	if f.Category != "" && !f.Category.IsValid() {
		return nil, apperror.Validation("unknown category filter")
	}
	if f.Priority != "" && !f.Priority.IsValid() {
		return nil, apperror.Validation("unknown priority filter")
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, apperror.Validation("limit and offset must not be negative")
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, apperror.Validation("from must be before to")
	}

	rows, err := s.store.ListGrievances(ctx, f)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if rows == nil {
		rows = []models.Grievance{}
	}
	return rows, nil
}

type SetStatusInput struct {
	Status              models.GrievanceStatus `json:"status"`
	RejectionReason     *string                `json:"rejection_reason"`
	ResolutionProofURLs []string               `json:"resolution_proof_urls"`
	Note                string                 `json:"note"`
}

// SetStatus moves a grievance through the state machine. Asking for the
// current status is a successful no-op. Concurrent writers are serialised by
// a compare-and-set on the status read here; the loser re-reads and is judged
// against the new state.
func (s *GrievanceService) SetStatus(ctx context.Context, actorID, id string, in SetStatusInput) (*models.Grievance, error) {
	if len(in.ResolutionProofURLs) > 0 && in.Status != models.StatusResolved {
		return nil, apperror.Validation("resolution proof may only be attached when resolving")
	}
	if in.RejectionReason != nil && in.Status != models.StatusRejected {
		return nil, apperror.Validation("rejection reason may only be given when rejecting")
	}
	if len(in.ResolutionProofURLs) > maxAttachedImages {
		return nil, apperror.Validation(fmt.Sprintf("at most %d proof images may be attached", maxAttachedImages))
	}
	if err := validateURLs("resolution_proof_urls", in.ResolutionProofURLs); err != nil {
		return nil, err
	}

	var reason string
	if in.RejectionReason != nil {
		reason = utils.StripTags(*in.RejectionReason)
		if len([]rune(reason)) > maxReasonLength {
			return nil, apperror.Validation(fmt.Sprintf("rejection reason must be at most %d characters", maxReasonLength))
		}
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == in.Status {
			return current, nil
		}
		if !in.Status.IsValid() || !current.Status.CanTransitionTo(in.Status) {
			return nil, apperror.InvalidTransition(id, string(current.Status), string(in.Status))
		}

		updated, err := s.store.UpdateStatus(ctx, store.StatusChange{
			GrievanceID:         id,
			From:                current.Status,
			To:                  in.Status,
			At:                  s.now().UTC(),
			ActorID:             actorID,
			Note:                utils.StripTags(in.Note),
			ResolutionProofURLs: in.ResolutionProofURLs,
			RejectionReason:     reason,
		})
		switch {
		case errors.Is(err, store.ErrStatusChanged):
			metrics.StatusConflicts.Inc()
			continue
		case errors.Is(err, store.ErrNotFound):
			return nil, apperror.NotFound("grievance")
		case err != nil:
			return nil, apperror.Internal(err)
		}

		metrics.StatusTransitions.WithLabelValues(string(current.Status), string(updated.Status)).Inc()
		logger.Log.WithFields(logrus.Fields{
			"grievance_id": id,
			"actor_id":     actorID,
			"from":         current.Status,
			"to":           updated.Status,
		}).Info("Grievance status changed")

		if s.notifier != nil {
			// Dispatch outlives request cancellation.
			s.notifier.StatusChanged(context.WithoutCancel(ctx), updated, current.Status)
		}
		return updated, nil
	}

	return nil, apperror.Internal(fmt.Errorf("status update for %s lost %d consecutive races", id, maxStatusAttempts))
}

func (s *GrievanceService) History(ctx context.Context, id string) ([]models.GrievanceStatusLog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.store.ListStatusHistory(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if rows == nil {
		rows = []models.GrievanceStatusLog{}
	}
	return rows, nil
}

// MapPin is the public, coordinate-only view of a grievance used by the map.
type MapPin struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Category  models.Category        `json:"category"`
	Status    models.GrievanceStatus `json:"status"`
	Priority  models.Priority        `json:"priority"`
	Latitude  float64                `json:"latitude"`
	Longitude float64                `json:"longitude"`
}

// MapPins lists grievances that carry coordinates. Only reads the store.
func (s *GrievanceService) MapPins(ctx context.Context, f store.GrievanceFilter) ([]MapPin, error) {
	rows, err := s.List(ctx, f)
	if err != nil {
		return nil, err
	}
	pins := make([]MapPin, 0, len(rows))
	for _, g := range rows {
		if g.Latitude == nil || g.Longitude == nil {
			continue
		}
		pins = append(pins, MapPin{
			ID:        g.ID,
			Title:     g.Title,
			Category:  g.Category,
			Status:    g.Status,
			Priority:  g.Priority,
			Latitude:  *g.Latitude,
			Longitude: *g.Longitude,
		})
	}
	return pins, nil
}
