package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"civiceye/internal/models"
)

// MemoryStore keeps everything in process. One mutex guards all maps, which
// gives the same uniqueness and compare-and-set guarantees as the database.
type MemoryStore struct {
	mu            sync.RWMutex
	grievances    map[string]*models.Grievance
	history       map[string][]models.GrievanceStatusLog
	notifications map[string]*models.Notification
	feedback      []*models.Feedback
	feedbackKeys  map[string]struct{}
	users         map[string]*models.User
	userEmails    map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		grievances:    make(map[string]*models.Grievance),
		history:       make(map[string][]models.GrievanceStatusLog),
		notifications: make(map[string]*models.Notification),
		feedbackKeys:  make(map[string]struct{}),
		users:         make(map[string]*models.User),
		userEmails:    make(map[string]string),
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

func copyGrievance(g *models.Grievance) *models.Grievance {
	c := *g
	c.ImageURLs = append([]string(nil), g.ImageURLs...)
	c.ResolutionProofURLs = append([]string(nil), g.ResolutionProofURLs...)
	if g.ResolvedAt != nil {
		at := *g.ResolvedAt
		c.ResolvedAt = &at
	}
	return &c
}

// Grievances

func (s *MemoryStore) CreateGrievance(ctx context.Context, g *models.Grievance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ensureID(&g.ID)
	if _, ok := s.grievances[g.ID]; ok {
		return ErrDuplicate
	}
	stamp(&g.CreatedAt)
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = g.CreatedAt
	}
	s.grievances[g.ID] = copyGrievance(g)
	return nil
}

func (s *MemoryStore) GetGrievance(ctx context.Context, id string) (*models.Grievance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.grievances[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGrievance(g), nil
}

func (s *MemoryStore) GetGrievancesByIDs(ctx context.Context, ids []string) (map[string]*models.Grievance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*models.Grievance, len(ids))
	for _, id := range ids {
		if g, ok := s.grievances[id]; ok {
			out[id] = copyGrievance(g)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListGrievances(ctx context.Context, f GrievanceFilter) ([]models.Grievance, error) {
	s.mu.RLock()
	var rows []models.Grievance
	for _, g := range s.grievances {
		if f.CreatorID != "" && g.UserID != f.CreatorID {
			continue
		}
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		if f.Category != "" && g.Category != f.Category {
			continue
		}
		if f.Priority != "" && g.Priority != f.Priority {
			continue
		}
		if f.From != nil && g.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !g.CreatedAt.Before(*f.To) {
			continue
		}
		rows = append(rows, *copyGrievance(g))
	}
	s.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].CreatedAt, rows[j].CreatedAt
		if a.Equal(b) {
			return rows[i].ID < rows[j].ID
		}
		if f.Ascending {
			return a.Before(b)
		}
		return a.After(b)
	})

	if f.Offset > 0 {
		if f.Offset >= len(rows) {
			return nil, nil
		}
		rows = rows[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(rows) {
		rows = rows[:f.Limit]
	}
	return rows, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, change StatusChange) (*models.Grievance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grievances[change.GrievanceID]
	if !ok {
		return nil, ErrNotFound
	}
	if g.Status != change.From {
		return nil, ErrStatusChanged
	}

	at := change.At
	stamp(&at)
	g.Status = change.To
	g.UpdatedAt = at
	switch change.To {
	case models.StatusResolved:
		resolvedAt := at
		g.ResolvedAt = &resolvedAt
		g.ResolutionProofURLs = append([]string(nil), change.ResolutionProofURLs...)
	case models.StatusRejected:
		g.RejectionReason = change.RejectionReason
	}

	entry := models.GrievanceStatusLog{
		GrievanceID: change.GrievanceID,
		FromStatus:  change.From,
		ToStatus:    change.To,
		ActorID:     change.ActorID,
		Note:        change.Note,
		CreatedAt:   at,
	}
	ensureID(&entry.ID)
	s.history[change.GrievanceID] = append(s.history[change.GrievanceID], entry)

	return copyGrievance(g), nil
}

func (s *MemoryStore) ListStatusHistory(ctx context.Context, grievanceID string) ([]models.GrievanceStatusLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.GrievanceStatusLog(nil), s.history[grievanceID]...), nil
}

func (s *MemoryStore) CountByStatus(ctx context.Context, creatorID string) (map[models.GrievanceStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.GrievanceStatus]int64)
	for _, g := range s.grievances {
		if creatorID == "" || g.UserID == creatorID {
			out[g.Status]++
		}
	}
	return out, nil
}

func (s *MemoryStore) CountBreakdown(ctx context.Context) (*Breakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := newBreakdown()
	for _, g := range s.grievances {
		b.add(g.Status, string(g.Category), 1)
	}
	return b, nil
}

func (s *MemoryStore) CountGrievancesSince(ctx context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, g := range s.grievances {
		if !g.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Notifications

func (s *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ensureID(&n.ID)
	stamp(&n.CreatedAt)
	c := *n
	s.notifications[n.ID] = &c
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	s.mu.RLock()
	var rows []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			rows = append(rows, *n)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return nil, ErrNotFound
	}
	n.IsRead = true
	c := *n
	return &c, nil
}

func (s *MemoryStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (s *MemoryStore) DeleteNotifications(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, n := range s.notifications {
		if n.UserID == userID {
			delete(s.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, note := range s.notifications {
		if note.UserID == userID && !note.IsRead {
			n++
		}
	}
	return n, nil
}

// Feedback

func feedbackKey(f *models.Feedback) (string, bool) {
	if f.UserID == nil {
		return "", false
	}
	return f.GrievanceID + "|" + *f.UserID, true
}

func (s *MemoryStore) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, unique := feedbackKey(f)
	if unique {
		if _, ok := s.feedbackKeys[key]; ok {
			return ErrDuplicate
		}
		s.feedbackKeys[key] = struct{}{}
	}

	ensureID(&f.ID)
	stamp(&f.CreatedAt)
	c := *f
	s.feedback = append(s.feedback, &c)
	return nil
}

func (s *MemoryStore) ListFeedback(ctx context.Context) ([]models.Feedback, error) {
	s.mu.RLock()
	rows := make([]models.Feedback, 0, len(s.feedback))
	for _, f := range s.feedback {
		rows = append(rows, *f)
	}
	s.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows, nil
}

// Users

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := s.userEmails[email]; ok {
		return ErrDuplicate
	}
	ensureID(&u.ID)
	if _, ok := s.users[u.ID]; ok {
		return ErrDuplicate
	}
	stamp(&u.CreatedAt)
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	c := *u
	s.users[u.ID] = &c
	s.userEmails[email] = u.ID
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userEmails[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s.users[id]
	return &c, nil
}

func (s *MemoryStore) UpdateUserName(ctx context.Context, id, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Name = name
	u.UpdatedAt = time.Now()
	c := *u
	return &c, nil
}

func (s *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *MemoryStore) CountUsersSince(ctx context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, u := range s.users {
		if !u.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
)
