// Package models contains data models for the timetrack service.
package models

import "time"

// Audit actions recorded by the service.
const (
	AuditLoginSuccess    = "login_success"
	AuditLoginFailure    = "login_failure"
	AuditLogout          = "logout"
	AuditTokenRefresh    = "token_refresh"
	AuditSSOProvisioning = "user_sso_provisioning"
	AuditRoleAssignment  = "role_assignment"
	AuditCreateTimeLog   = "create_time_log"
	AuditDeleteTimeLog   = "delete_time_log"
)

// AuditLog is an append-only record of a security-relevant action. The
// service only ever writes these; they are read out-of-band.
type AuditLog struct {
	ID         string    `json:"id" gorm:"primaryKey;size:64"`
	UserID     string    `json:"user_id" gorm:"index;size:64"`
	Action     string    `json:"action" gorm:"index;not null"`
	ResourceID string    `json:"resource_id" gorm:"size:64"`
	Timestamp  time.Time `json:"timestamp" gorm:"index;not null"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Success    bool      `json:"success" gorm:"not null"`
	Details    string    `json:"details,omitempty"`
}

// TableName returns the database table name for the AuditLog model.
func (AuditLog) TableName() string {
	return "audit_logs"
}
