// Package models contains data models for the timetrack service.
package models

import "time"

// Role is a named bundle of permission strings (e.g. "read:own_time",
// "admin:*"). Roles are static reference data maintained by admins and
// assigned to users through the user_roles relation.
type Role struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions" gorm:"serializer:json"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for the Role model.
func (Role) TableName() string {
	return "roles"
}

// UserRole assigns a role to a user. It is the relational form of the
// has_role edge: one row per (user, role) pair.
type UserRole struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;size:64"`
	RoleID    string    `json:"role_id" gorm:"primaryKey;size:64"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Role      Role      `json:"-" gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for the UserRole model.
func (UserRole) TableName() string {
	return "user_roles"
}

// RoleGrant is the result row of the role-grant traversal for a user:
// the role id plus the permissions that role carries.
type RoleGrant struct {
	RoleID      string
	Permissions []string
}
