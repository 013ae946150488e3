package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionLoginSucceeded AuditAction = "login_succeeded"
	AuditActionLoginFailed    AuditAction = "login_failed"
	AuditActionLoginThrottled AuditAction = "login_throttled"
	AuditActionLogout         AuditAction = "logout"
	AuditActionAccessDenied   AuditAction = "access_denied"
	AuditActionProfileUpdated AuditAction = "profile_updated"
)

// AuditLog represents an audit trail entry for an authentication or
// authorization event
type AuditLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Email     string          `json:"email,omitempty" db:"email"`
	Role      string          `json:"role,omitempty" db:"role"`
	Action    AuditAction     `json:"action" db:"action"`
	Path      string          `json:"path,omitempty" db:"path"`
	Details   json.RawMessage `json:"details,omitempty" db:"details"`
	IPAddress string          `json:"ip_address" db:"ip_address"`
	UserAgent string          `json:"user_agent" db:"user_agent"`
	RequestID string          `json:"request_id" db:"request_id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Timestamp: time.Now(),
	}
}

// WithUser sets the acting user
func (a *AuditLog) WithUser(userID uuid.UUID, email, role string) *AuditLog {
	a.UserID = &userID
	a.Email = email
	a.Role = role
	return a
}

// WithEmail sets the attempted email when no user id is known
func (a *AuditLog) WithEmail(email string) *AuditLog {
	a.Email = email
	return a
}

// WithPath sets the requested path
func (a *AuditLog) WithPath(path string) *AuditLog {
	a.Path = path
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}
