// Package user provides the accounts that receive air-quality alerts.
package user

import "time"

// Status is the lifecycle state of an account. Only active accounts are
// evaluated for alerts.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusDeleted   Status = "DELETED"
)

// User is an account subscribed to air-quality alerts.
type User struct {
	// ID is the unique user identifier (format: usr_XXXX).
	ID string

	Username string

	// Email is where e-mail notifications are delivered.
	Email string

	Status Status

	// EmailAlertsEnabled is the user's preference for e-mail notifications.
	EmailAlertsEnabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the account should be evaluated for alerts.
func (u *User) Active() bool {
	return u.Status == StatusActive
}
