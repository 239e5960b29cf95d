package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dhoini/seatsync/internal/domain"
)

func TestGetOrganizationRestrictions_Free(t *testing.T) {
	members := append(ownerPlus(0), member("p1", domain.RoleMember, domain.MemberPending))

	r := GetOrganizationRestrictions(members, true)
	assert.Equal(t, Restrictions{MaxMembers: 1, MaxStorageGB: 0}, r)
	assert.False(t, r.CanAccessFleetMap)
}

func TestGetOrganizationRestrictions_Paid(t *testing.T) {
	members := append(ownerPlus(2), member("i1", domain.RoleMember, domain.MemberInactive))

	r := GetOrganizationRestrictions(members, false)
	assert.True(t, r.CanManageTeams)
	assert.True(t, r.CanAssignEquipmentToTeams)
	assert.True(t, r.CanUploadImages)
	assert.True(t, r.CanInviteMembers)
	assert.False(t, r.CanAccessFleetMap)
	assert.Equal(t, UnlimitedMembers, r.MaxMembers)
	assert.Equal(t, 20, r.MaxStorageGB)

	assert.True(t, GetOrganizationRestrictions(members, true).CanAccessFleetMap)
}
