package domain

import "time"

// MemberRole is the role of a user inside an organization
type MemberRole string

const (
	RoleOwner   MemberRole = "owner"
	RoleAdmin   MemberRole = "admin"
	RoleManager MemberRole = "manager"
	RoleMember  MemberRole = "member"
	RoleViewer  MemberRole = "viewer"
)

// MemberStatus is the seat state of a membership
type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberPending  MemberStatus = "pending"
	MemberInactive MemberStatus = "inactive"
)

// OrganizationMember is one user's membership in an organization.
// Exactly one owner exists per organization and the owner is never billable.
type OrganizationMember struct {
	ID             string       `json:"id" db:"id"`
	OrganizationID string       `json:"organization_id" db:"organization_id"`
	UserID         string       `json:"user_id" db:"user_id"`
	Name           string       `json:"name" db:"name"`
	Email          string       `json:"email" db:"email"`
	Role           MemberRole   `json:"role" db:"role"`
	Status         MemberStatus `json:"status" db:"status"`
	JoinedDate     time.Time    `json:"joined_date" db:"joined_date"`
}

func (m OrganizationMember) IsOwner() bool {
	return m.Role == RoleOwner
}

func (m OrganizationMember) IsActive() bool {
	return m.Status == MemberActive
}

// Organization carries the usage inputs the billing calculator needs.
type Organization struct {
	ID              string  `json:"id" db:"id"`
	Name            string  `json:"name" db:"name"`
	StorageUsedGB   float64 `json:"storage_used_gb" db:"storage_used_gb"`
	FleetMapEnabled bool    `json:"fleet_map_enabled" db:"fleet_map_enabled"`
}
