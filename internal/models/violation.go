package models

import "time"

// Default fine amounts applied when an officer's free-text violation
// creates a catalog entry on the fly.
const (
	DefaultFineFirst  = 500.00
	DefaultFineSecond = 1000.00
	DefaultFineThird  = 1500.00
)

// MaxOffenseTier caps the offense count used for fine selection.
const MaxOffenseTier = 3

// ViolationType is a catalog entry with per-tier fine amounts.
type ViolationType struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	FineAmount1 float64   `db:"fine_amount_1" json:"fine_amount_1"`
	FineAmount2 float64   `db:"fine_amount_2" json:"fine_amount_2"`
	FineAmount3 float64   `db:"fine_amount_3" json:"fine_amount_3"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FineForTier returns the fine amount charged at the given offense tier.
func (v ViolationType) FineForTier(tier int) float64 {
	switch {
	case tier <= 1:
		return v.FineAmount1
	case tier == 2:
		return v.FineAmount2
	default:
		return v.FineAmount3
	}
}

// ViolationTypeFilter captures filtering criteria for listing the catalog.
type ViolationTypeFilter struct {
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Violation is a citation line item: one charged violation type at the
// offense tier resolved when it was recorded. The tier and fine are
// fixed at creation time; later offenses elsewhere never rewrite them.
type Violation struct {
	ID              string    `db:"id" json:"id"`
	CitationID      string    `db:"citation_id" json:"citation_id"`
	ViolationTypeID string    `db:"violation_type_id" json:"violation_type_id"`
	OffenseCount    int       `db:"offense_count" json:"offense_count"`
	FineAmount      float64   `db:"fine_amount" json:"fine_amount"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ViolationDetail joins a line item with its catalog name for display.
type ViolationDetail struct {
	Violation
	ViolationName string `db:"violation_name" json:"violation_name"`
}
