package models

import (
	"time"
)

// Feedback is one citizen rating of a resolved grievance. The composite unique
// index allows a single row per (grievance, user); anonymous rows (NULL user)
// are not constrained.
type Feedback struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	GrievanceID string     `gorm:"type:uuid;not null;index;uniqueIndex:idx_feedback_grievance_user" json:"grievance_id"`
	Grievance   *Grievance `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID      *string    `gorm:"type:uuid;uniqueIndex:idx_feedback_grievance_user" json:"user_id,omitempty"`
	Rating      int        `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comments    string     `gorm:"type:text" json:"comments,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// GrievanceContext is the minimal grievance data shown next to admin feedback.
type GrievanceContext struct {
	Title    string          `json:"title"`
	Status   GrievanceStatus `json:"status"`
	Category Category        `json:"category"`
}

type FeedbackWithGrievance struct {
	Feedback
	Grievance *GrievanceContext `json:"grievance"`
}
