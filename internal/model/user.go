package model

import (
	"strings"
	"time"
)

// Role is a user's authorization level.
type Role string

const (
	RoleCommon     Role = "common"
	RolePremium    Role = "premium"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCommon, RolePremium, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// AdminRoles lists the roles that count toward the active-admin invariant.
var AdminRoles = []Role{RoleAdmin, RoleSuperAdmin}

// User represents an authenticated user in the system.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	FirstName    string    `json:"first_name" gorm:"size:100"`
	LastName     string    `json:"last_name" gorm:"size:100"`
	Role         Role      `json:"role" gorm:"type:varchar(20);not null;default:'common';index"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true;index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName is the name stamped on tasks the user assigns.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
