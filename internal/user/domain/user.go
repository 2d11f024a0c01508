package domain

import (
	"encoding/json"
	"errors"
)

// User is the authenticated account snapshot held by the session. It is replaced
// wholesale on login or successful validation and never mutated in place.
type User struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Role   Role       `json:"role"`
	Status UserStatus `json:"status"`
}

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusPending  UserStatus = "pending"
)

// Route paths the session and guard navigate to.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// DashboardPath returns the landing route for role. Unknown roles land on /unauthorized.
func DashboardPath(role Role) string {
	switch role {
	case RolePatient:
		return "/dashboard"
	case RoleDoctor:
		return "/doctor/dashboard"
	case RoleAdmin:
		return "/admin/dashboard"
	}
	return UnauthorizedPath
}

// Validate returns an error describing the first problem that makes u unusable as a session user.
func (u *User) Validate() error {
	if u == nil {
		return errors.New("user is required")
	}
	if u.ID == "" {
		return errors.New("user id is required")
	}
	if u.Role == "" {
		return errors.New("user role is required")
	}
	return nil
}

// UnmarshalJSON accepts both "id" and the backend's "_id".
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	if u.ID == "" {
		u.ID = aux.MongoID
	}
	return nil
}
