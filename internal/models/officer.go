package models

import "time"

// Officer is an apprehending-officer roster entry. Citations reference
// officers informally by name, not by foreign key.
type Officer struct {
	ID          string    `db:"id" json:"id"`
	OfficerName string    `db:"officer_name" json:"officer_name"`
	BadgeNumber *string   `db:"badge_number" json:"badge_number,omitempty"`
	Position    *string   `db:"position" json:"position,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// OfficerFilter captures filtering criteria for listing officers.
type OfficerFilter struct {
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
