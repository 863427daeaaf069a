// Package models contains data models for the timetrack service.
package models

import "time"

// Consent types recognised by the service. Processing of the matching
// data category is only lawful while the user's consent record for the
// type has Granted set.
const (
	ConsentTimeTracking      = "time_tracking"
	ConsentExpenseProcessing = "expense_processing"
	ConsentAnalytics         = "analytics"
)

// User represents an employee account. PasswordHash is empty for
// SSO-provisioned accounts, which must authenticate via the identity
// provider instead of the local login flow.
type User struct {
	ID              string          `json:"id" gorm:"primaryKey;size:64"`
	Username        string          `json:"username" gorm:"not null"`
	Email           string          `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash    string          `json:"-" gorm:"column:password_hash"`
	Department      string          `json:"department" gorm:"not null;default:Unassigned"`
	HireDate        *time.Time      `json:"hire_date,omitempty"`
	TerminationDate *time.Time      `json:"termination_date,omitempty"`
	Consents        []ConsentRecord `json:"consents" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	LastLogin       *time.Time      `json:"last_login,omitempty"`
}

// TableName returns the database table name for the User model.
func (User) TableName() string {
	return "users"
}

// ConsentRecord is a per-user, per-purpose processing consent flag.
// Records are versioned against the consent text the user saw.
type ConsentRecord struct {
	ID      int64     `json:"-" gorm:"primaryKey"`
	UserID  string    `json:"-" gorm:"index;size:64;not null"`
	Type    string    `json:"type" gorm:"not null"`
	Granted bool      `json:"granted" gorm:"not null;default:false"`
	Date    time.Time `json:"date"`
	Version string    `json:"version" gorm:"not null;default:1.0"`
}

// TableName returns the database table name for the ConsentRecord model.
func (ConsentRecord) TableName() string {
	return "user_consents"
}
