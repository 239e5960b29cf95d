package billing

import (
	"math"

	"github.com/Dhoini/seatsync/internal/domain"
)

// UnlimitedMembers is the member cap reported for paid organizations.
const UnlimitedMembers = math.MaxInt32

// Restrictions is the feature gate applied to an organization.
type Restrictions struct {
	CanManageTeams            bool `json:"can_manage_teams"`
	CanAssignEquipmentToTeams bool `json:"can_assign_equipment_to_teams"`
	CanUploadImages           bool `json:"can_upload_images"`
	CanAccessFleetMap         bool `json:"can_access_fleet_map"`
	CanInviteMembers          bool `json:"can_invite_members"`
	MaxMembers                int  `json:"max_members"`
	MaxStorageGB              int  `json:"max_storage_gb"`
}

// GetOrganizationRestrictions uses DefaultPricing storage allowances.
func GetOrganizationRestrictions(members []domain.OrganizationMember, fleetMapEnabled bool) Restrictions {
	return DefaultPricing.Restrictions(members, fleetMapEnabled)
}

// Restrictions maps membership onto the free or paid feature gate.
func (p Pricing) Restrictions(members []domain.OrganizationMember, fleetMapEnabled bool) Restrictions {
	if IsFreeOrganization(members) {
		return Restrictions{MaxMembers: 1}
	}

	active, _ := countByStatus(members)
	return Restrictions{
		CanManageTeams:            true,
		CanAssignEquipmentToTeams: true,
		CanUploadImages:           true,
		CanAccessFleetMap:         fleetMapEnabled,
		CanInviteMembers:          true,
		MaxMembers:                UnlimitedMembers,
		MaxStorageGB:              p.BaseStorageGB + p.StoragePerMemberGB*active,
	}
}
