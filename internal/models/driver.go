package models

import "time"

// Driver is the independently-editable identity record. Citations carry
// their own snapshot of these fields; a later change here never touches
// an already-issued citation.
type Driver struct {
	ID            string     `db:"id" json:"id"`
	LastName      string     `db:"last_name" json:"last_name"`
	FirstName     string     `db:"first_name" json:"first_name"`
	MiddleInitial *string    `db:"middle_initial" json:"middle_initial,omitempty"`
	Suffix        *string    `db:"suffix" json:"suffix,omitempty"`
	DateOfBirth   *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Age           *int       `db:"age" json:"age,omitempty"`
	Zone          *string    `db:"zone" json:"zone,omitempty"`
	Barangay      string     `db:"barangay" json:"barangay"`
	Municipality  string     `db:"municipality" json:"municipality"`
	Province      string     `db:"province" json:"province"`
	LicenseNumber *string    `db:"license_number" json:"license_number,omitempty"`
	LicenseType   *string    `db:"license_type" json:"license_type,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
