package domain

import "time"

// UserRole distinguishes agents from requesters.
type UserRole string

const (
	UserRoleAgent UserRole = "agent"
	UserRoleUser  UserRole = "user"
)

// User is a helpdesk account; agents receive SLA notices for tickets assigned to them.
type User struct {
	ID        string
	Email     string
	Role      UserRole
	CreatedAt time.Time
}
