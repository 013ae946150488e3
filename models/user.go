package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/emergency-console/rbac"
)

// User represents a console account. Exactly one role is assigned at
// provisioning and it cannot be changed through the API.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	Role         rbac.Role `json:"role" db:"role"`
	PasswordHash string    `json:"-" db:"password_hash"`
	AvatarURL    *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	Location     *string   `json:"location,omitempty" db:"location"`
	Department   *string   `json:"department,omitempty" db:"department"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User instance
func NewUser(email, name string, role rbac.Role, passwordHash string) *User {
	now := time.Now()
	return &User{
		ID:           uuid.New(),
		Email:        NormalizeEmail(email),
		Name:         name,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeEmail lowercases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAdmin returns true if the user holds the superset role
func (u *User) IsAdmin() bool {
	return u.Role.IsSuperset()
}

// Permissions returns the permissions currently derived from the user's role
func (u *User) Permissions() []rbac.Permission {
	return rbac.Permissions(u.Role)
}

// ProfileUpdate carries the optional profile fields a user may change about
// themselves. Nil fields are left untouched.
type ProfileUpdate struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	AvatarURL  *string `json:"avatar_url,omitempty" validate:"omitempty,url,max=512"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Location   *string `json:"location,omitempty" validate:"omitempty,max=120"`
	Department *string `json:"department,omitempty" validate:"omitempty,max=120"`
}

// IsEmpty reports whether the update changes nothing
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.AvatarURL == nil && p.Phone == nil &&
		p.Location == nil && p.Department == nil
}

// Fields returns the JSON names of the set fields
func (p ProfileUpdate) Fields() []string {
	var fields []string
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.AvatarURL != nil {
		fields = append(fields, "avatar_url")
	}
	if p.Phone != nil {
		fields = append(fields, "phone")
	}
	if p.Location != nil {
		fields = append(fields, "location")
	}
	if p.Department != nil {
		fields = append(fields, "department")
	}
	return fields
}

// Apply copies the set fields onto u and bumps UpdatedAt
func (p ProfileUpdate) Apply(u *User, now time.Time) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.AvatarURL != nil {
		u.AvatarURL = p.AvatarURL
	}
	if p.Phone != nil {
		u.Phone = p.Phone
	}
	if p.Location != nil {
		u.Location = p.Location
	}
	if p.Department != nil {
		u.Department = p.Department
	}
	u.UpdatedAt = now
}
