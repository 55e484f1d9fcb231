package services

import (
	"context"
	"time"

	"civiceye/internal/apperror"
	"civiceye/internal/models"
	"civiceye/internal/store"
)

// StatusCounts is the per-status breakdown shared by user and global stats.
type StatusCounts struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"in_progress"`
	Resolved   int64 `json:"resolved"`
	Rejected   int64 `json:"rejected"`
}

type Overview struct {
	TotalGrievances int64        `json:"total_grievances"`
	TotalUsers      int64        `json:"total_users"`
	ByStatus        StatusCounts `json:"by_status"`
}

type WindowCounts struct {
	Users      int64 `json:"users"`
	Grievances int64 `json:"grievances"`
}

type GlobalStats struct {
	Overview          Overview         `json:"overview"`
	CategoryBreakdown map[string]int64 `json:"category_breakdown"`
	Last7Days         WindowCounts     `json:"last_7_days"`
	Last30Days        WindowCounts     `json:"last_30_days"`
}

// StatsService derives every figure from the store on each call.
type StatsService struct {
	grievances store.GrievanceStore
	users      store.UserStore
	now        func() time.Time
}

func NewStatsService(g store.GrievanceStore, u store.UserStore) *StatsService {
	return &StatsService{grievances: g, users: u, now: time.Now}
}

func foldStatus(counts map[models.GrievanceStatus]int64) StatusCounts {
	var out StatusCounts
	for status, n := range counts {
		out.Total += n
		switch status {
		case models.StatusPending:
			out.Pending = n
		case models.StatusInProgress:
			out.InProgress = n
		case models.StatusResolved:
			out.Resolved = n
		case models.StatusRejected:
			out.Rejected = n
		}
	}
	return out
}

func (s *StatsService) UserStats(ctx context.Context, userID string) (StatusCounts, error) {
	if userID == "" {
		return StatusCounts{}, apperror.Validation("user id is required")
	}
	counts, err := s.grievances.CountByStatus(ctx, userID)
	if err != nil {
		return StatusCounts{}, apperror.Internal(err)
	}
	return foldStatus(counts), nil
}

func (s *StatsService) GlobalStats(ctx context.Context) (*GlobalStats, error) {
	breakdown, err := s.grievances.CountBreakdown(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	totalUsers, err := s.users.CountUsers(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	stats := &GlobalStats{
		Overview: Overview{
			TotalGrievances: breakdown.Total,
			TotalUsers:      totalUsers,
			ByStatus:        foldStatus(breakdown.ByStatus),
		},
		CategoryBreakdown: breakdown.ByCategory,
	}
	if stats.CategoryBreakdown == nil {
		stats.CategoryBreakdown = map[string]int64{}
	}

	now := s.now().UTC()
	if stats.Last7Days, err = s.window(ctx, now.AddDate(0, 0, -7)); err != nil {
		return nil, err
	}
	if stats.Last30Days, err = s.window(ctx, now.AddDate(0, 0, -30)); err != nil {
		return nil, err
	}
	return stats, nil
}

// window counts records created at or after since.
func (s *StatsService) window(ctx context.Context, since time.Time) (WindowCounts, error) {
	users, err := s.users.CountUsersSince(ctx, since)
	if err != nil {
		return WindowCounts{}, apperror.Internal(err)
	}
	grievances, err := s.grievances.CountGrievancesSince(ctx, since)
	if err != nil {
		return WindowCounts{}, apperror.Internal(err)
	}
	return WindowCounts{Users: users, Grievances: grievances}, nil
}
