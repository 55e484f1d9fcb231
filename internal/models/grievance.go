package models

import (
	"time"
)

type GrievanceStatus string

const (
	StatusPending    GrievanceStatus = "pending"
	StatusInProgress GrievanceStatus = "in_progress"
	StatusResolved   GrievanceStatus = "resolved"
	StatusRejected   GrievanceStatus = "rejected"
)

// transitions lists every legal forward move. Terminal states have no entry.
var transitions = map[GrievanceStatus][]GrievanceStatus{
	StatusPending:    {StatusInProgress, StatusResolved, StatusRejected},
	StatusInProgress: {StatusResolved, StatusRejected},
}

func (s GrievanceStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

func (s GrievanceStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// CanTransitionTo reports whether s may move to target. Same-state requests are
// handled by the caller as no-ops and are not legal transitions here.
func (s GrievanceStatus) CanTransitionTo(target GrievanceStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func AllStatuses() []GrievanceStatus {
	return []GrievanceStatus{StatusPending, StatusInProgress, StatusResolved, StatusRejected}
}

type Category string

const (
	CategoryGarbage     Category = "garbage"
	CategoryStreetlight Category = "streetlight"
	CategoryWater       Category = "water"
	CategoryRoad        Category = "road"
	CategoryNoise       Category = "noise"
	CategoryOthers      Category = "others"
	CategoryEmergency   Category = "emergency"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryGarbage, CategoryStreetlight, CategoryWater, CategoryRoad,
		CategoryNoise, CategoryOthers, CategoryEmergency:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityMedium    Priority = "medium"
	PriorityHigh      Priority = "high"
	PriorityEmergency Priority = "emergency"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityEmergency:
		return true
	}
	return false
}

type Grievance struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string          `gorm:"not null" json:"title"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Category    Category        `gorm:"type:varchar(20);not null;index" json:"category"`
	Status      GrievanceStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Priority    Priority        `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`

	Location  string   `gorm:"not null" json:"location"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"` // creator, immutable
	User   *User  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`

	ImageURLs           []string `gorm:"type:jsonb;serializer:json" json:"image_urls"`
	AudioURL            string   `json:"audio_url,omitempty"`
	ResolutionProofURLs []string `gorm:"type:jsonb;serializer:json" json:"resolution_proof_urls"`
	RejectionReason     string   `gorm:"type:text" json:"rejection_reason,omitempty"`

	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	// Filled on detail reads only.
	DescriptionHTML string `gorm:"-" json:"description_html,omitempty"`
}

func (g *Grievance) IsResolved() bool {
	return g.Status == StatusResolved
}

// GrievanceStatusLog records one committed transition.
type GrievanceStatusLog struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	GrievanceID string          `gorm:"type:uuid;not null;index" json:"grievance_id"`
	FromStatus  GrievanceStatus `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus    GrievanceStatus `gorm:"type:varchar(20);not null" json:"to_status"`
	ActorID     string          `gorm:"type:uuid" json:"actor_id,omitempty"`
	Note        string          `gorm:"type:text" json:"note,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
