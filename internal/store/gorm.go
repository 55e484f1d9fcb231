package store

import (
	"context"
	"errors"
	"time"

	"civiceye/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

// NewGormStore expects db to be opened with TranslateError enabled so unique
// violations surface as gorm.ErrDuplicatedKey.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// Grievances

func (s *GormStore) CreateGrievance(ctx context.Context, g *models.Grievance) error {
	ensureID(&g.ID)
	return translate(s.db.WithContext(ctx).Create(g).Error)
}

func (s *GormStore) GetGrievance(ctx context.Context, id string) (*models.Grievance, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var g models.Grievance
	if err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (s *GormStore) GetGrievancesByIDs(ctx context.Context, ids []string) (map[string]*models.Grievance, error) {
	out := make(map[string]*models.Grievance, len(ids))
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return out, nil
	}

	var rows []models.Grievance
	if err := s.db.WithContext(ctx).Where("id IN ?", valid).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

func (s *GormStore) ListGrievances(ctx context.Context, f GrievanceFilter) ([]models.Grievance, error) {
	// No user can own a grievance under a malformed id.
	if f.CreatorID != "" {
		if _, err := uuid.Parse(f.CreatorID); err != nil {
			return []models.Grievance{}, nil
		}
	}
	q := s.db.WithContext(ctx).Model(&models.Grievance{})
	if f.CreatorID != "" {
		q = q.Where("user_id = ?", f.CreatorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: !f.Ascending})
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []models.Grievance
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) UpdateStatus(ctx context.Context, change StatusChange) (*models.Grievance, error) {
	if _, err := uuid.Parse(change.GrievanceID); err != nil {
		return nil, ErrNotFound
	}

	var updated models.Grievance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := []string{"status", "updated_at"}
		values := models.Grievance{Status: change.To, UpdatedAt: change.At}
		switch change.To {
		case models.StatusResolved:
			at := change.At
			values.ResolvedAt = &at
			values.ResolutionProofURLs = change.ResolutionProofURLs
			fields = append(fields, "resolved_at", "resolution_proof_urls")
		case models.StatusRejected:
			values.RejectionReason = change.RejectionReason
			fields = append(fields, "rejection_reason")
		}

		// Compare-and-set on the status the caller validated against.
		res := tx.Model(&models.Grievance{}).
			Where("id = ? AND status = ?", change.GrievanceID, change.From).
			Select(fields).
			Updates(&values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Grievance{}).Where("id = ?", change.GrievanceID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrStatusChanged
		}

		entry := models.GrievanceStatusLog{
			ID:          uuid.NewString(),
			GrievanceID: change.GrievanceID,
			FromStatus:  change.From,
			ToStatus:    change.To,
			ActorID:     change.ActorID,
			Note:        change.Note,
			CreatedAt:   change.At,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		return tx.First(&updated, "id = ?", change.GrievanceID).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &updated, nil
}

func (s *GormStore) ListStatusHistory(ctx context.Context, grievanceID string) ([]models.GrievanceStatusLog, error) {
	var rows []models.GrievanceStatusLog
	err := s.db.WithContext(ctx).
		Where("grievance_id = ?", grievanceID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

type countRow struct {
	Bucket string
	Count  int64
}

func (s *GormStore) CountByStatus(ctx context.Context, creatorID string) (map[models.GrievanceStatus]int64, error) {
	if creatorID != "" {
		if _, err := uuid.Parse(creatorID); err != nil {
			return map[models.GrievanceStatus]int64{}, nil
		}
	}
	q := s.db.WithContext(ctx).Model(&models.Grievance{}).Select("status AS bucket, COUNT(*) AS count")
	if creatorID != "" {
		q = q.Where("user_id = ?", creatorID)
	}
	var rows []countRow
	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[models.GrievanceStatus]int64, len(rows))
	for _, r := range rows {
		out[models.GrievanceStatus(r.Bucket)] = r.Count
	}
	return out, nil
}

// CountBreakdown groups by status and category in one statement so both
// views describe the same set of rows.
func (s *GormStore) CountBreakdown(ctx context.Context) (*Breakdown, error) {
	var rows []struct {
		Status   string
		Category string
		Count    int64
	}
	err := s.db.WithContext(ctx).Model(&models.Grievance{}).
		Select("status, COALESCE(category, '') AS category, COUNT(*) AS count").
		Group("status, category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	b := newBreakdown()
	for _, r := range rows {
		b.add(models.GrievanceStatus(r.Status), r.Category, r.Count)
	}
	return b, nil
}

func (s *GormStore) CountGrievancesSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Grievance{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}

// Notifications

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	ensureID(&n.ID)
	return translate(s.db.WithContext(ctx).Create(n).Error)
}

func (s *GormStore) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Notification
	err := q.Find(&rows).Error
	return rows, err
}

func (s *GormStore) MarkNotificationRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var n models.Notification
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		return nil, translate(err)
	}
	if !n.IsRead {
		if err := s.db.WithContext(ctx).Model(&n).Update("is_read", true).Error; err != nil {
			return nil, err
		}
	}
	return &n, nil
}

func (s *GormStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (s *GormStore) DeleteNotifications(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

func (s *GormStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// Feedback

func (s *GormStore) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	ensureID(&f.ID)
	return translate(s.db.WithContext(ctx).Create(f).Error)
}

func (s *GormStore) ListFeedback(ctx context.Context) ([]models.Feedback, error) {
	var rows []models.Feedback
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

// Users

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	ensureID(&u.ID)
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) UpdateUserName(ctx context.Context, id, name string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *GormStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

func (s *GormStore) CountUsersSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}
