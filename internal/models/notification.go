package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
)

type Notification struct {
	ID          string           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string           `gorm:"type:uuid;not null;index" json:"user_id"` // Receiver
	User        *User            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Title       string           `gorm:"not null" json:"title"`
	Message     string           `gorm:"type:text;not null" json:"message"`
	Type        NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	IsRead      bool             `gorm:"default:false;index" json:"is_read"`
	GrievanceID *string          `gorm:"type:uuid;index" json:"grievance_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
