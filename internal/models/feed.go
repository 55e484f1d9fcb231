package models

import (
	"time"
)

// CityUpdate is one entry of the aggregated "city updates" panel. Entries live
// in the feed cache only and are never persisted.
type CityUpdate struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
}
