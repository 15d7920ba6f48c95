// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package crm defines the business entities the CRM client exchanges with
// the server: operators, leads and dashboard aggregates.
//
// # Architecture
//
// Entities in this package have no dependencies on transport or storage.
// Both the client core and the development backend speak in these types.
package crm

import "github.com/taibuivan/leadcrm/pkg/pointer"

// Role represents the authorization level granted to an operator.
type Role string

const (
	RoleSuperAdmin Role = "super_admin" // Manages admins and sees every lead.
	RoleAdmin      Role = "admin"       // Works the leads assigned to them.
)

// level maps a role to a numeric hierarchy level to easily check permissions.
func (r Role) level() int {
	switch r {
	case RoleSuperAdmin:
		return 20
	case RoleAdmin:
		return 10
	default:
		return 0
	}
}

// AtLeast checks if the current role meets or exceeds the required target role.
func (r Role) AtLeast(target Role) bool {
	return r.level() >= target.level()
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.level() > 0
}

// User is the operator identity returned by login and verification.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// UserPatch carries a merge-only update of the local operator record.
// Nil fields are left untouched.
type UserPatch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Role  *Role   `json:"role,omitempty"`
}

// Apply returns a copy of user with the non-nil patch fields merged in.
func (patch UserPatch) Apply(user User) User {
	user.Name = pointer.Fallback(patch.Name, user.Name)
	user.Email = pointer.Fallback(patch.Email, user.Email)
	user.Role = pointer.Fallback(patch.Role, user.Role)
	return user
}
