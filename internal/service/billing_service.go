package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/seatsync/internal/billing"
	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/internal/repository"
	"github.com/Dhoini/seatsync/pkg/logger"
)

// BillingSummary is the billing view of one organization.
type BillingSummary struct {
	OrganizationID    string               `json:"organization_id"`
	Calculation       billing.Calculation  `json:"calculation"`
	SlotStatus        billing.SlotStatus   `json:"slot_status"`
	Restrictions      billing.Restrictions `json:"restrictions"`
	IsFree            bool                 `json:"is_free"`
	HasLicenses       bool                 `json:"has_licenses"`
	InvitationBlocked bool                 `json:"invitation_blocked"`
}

// InvitationEligibility tells an inviter whether another seat can be used.
type InvitationEligibility struct {
	Blocked    bool               `json:"blocked"`
	SlotStatus billing.SlotStatus `json:"slot_status"`
}

// BillingService serves billing reads for organization members.
type BillingService struct {
	store   repository.Store
	slots   repository.SlotRepository
	pricing billing.Pricing
	log     *logger.Logger
}

// NewBillingService creates the service. slots reads the seat ledger, usually
// through the Redis cache; nil reads straight from the store.
func NewBillingService(store repository.Store, slots repository.SlotRepository, pricing billing.Pricing, log *logger.Logger) *BillingService {
	if slots == nil {
		slots = store
	}
	return &BillingService{store: store, slots: slots, pricing: pricing, log: log}
}

type billingInputs struct {
	org     *domain.Organization
	members []domain.OrganizationMember
	slots   *domain.SlotAvailability
}

// load reads everything the calculator needs after checking that userID is an
// active member of orgID.
func (s *BillingService) load(ctx context.Context, orgID, userID string) (*billingInputs, error) {
	org, err := s.store.GetOrganization(ctx, orgID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}

	members, err := s.store.ListMembers(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if !hasActiveMember(members, userID) {
		s.log.Warnw("Billing access denied", "organizationID", orgID, "userID", userID)
		return nil, domain.ErrForbidden
	}

	slots, err := s.slots.GetSlotAvailability(ctx, orgID)
	if errors.Is(err, repository.ErrNotFound) {
		slots = nil
	} else if err != nil {
		return nil, fmt.Errorf("get slot availability: %w", err)
	}

	return &billingInputs{org: org, members: members, slots: slots}, nil
}

// Summary computes the organization's monthly billing and feature gates.
func (s *BillingService) Summary(ctx context.Context, orgID, userID string) (*BillingSummary, error) {
	in, err := s.load(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}

	calc := s.pricing.Calculate(billing.State{
		Members:         in.members,
		Slots:           in.slots,
		StorageGB:       in.org.StorageUsedGB,
		FleetMapEnabled: in.org.FleetMapEnabled,
	})
	return &BillingSummary{
		OrganizationID:    orgID,
		Calculation:       calc,
		SlotStatus:        billing.GetSlotStatus(in.slots, calc.CurrentUsage.TotalSlotsNeeded),
		Restrictions:      s.pricing.Restrictions(in.members, in.org.FleetMapEnabled),
		IsFree:            billing.IsFreeOrganization(in.members),
		HasLicenses:       billing.HasLicenses(in.slots),
		InvitationBlocked: billing.ShouldBlockInvitation(in.slots),
	}, nil
}

// InvitationEligibility reports whether a new invitation would exceed the
// purchased seats.
func (s *BillingService) InvitationEligibility(ctx context.Context, orgID, userID string) (*InvitationEligibility, error) {
	in, err := s.load(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	calc := s.pricing.Calculate(billing.State{Members: in.members, Slots: in.slots})
	return &InvitationEligibility{
		Blocked:    billing.ShouldBlockInvitation(in.slots),
		SlotStatus: billing.GetSlotStatus(in.slots, calc.CurrentUsage.TotalSlotsNeeded),
	}, nil
}

func hasActiveMember(members []domain.OrganizationMember, userID string) bool {
	for _, m := range members {
		if m.UserID == userID && m.IsActive() {
			return true
		}
	}
	return false
}
