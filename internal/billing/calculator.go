// Package billing computes seat, storage and add-on costs for an organization and
// derives the slot status and feature gating shown to its members. Everything in
// this package is pure and safe for concurrent use.
package billing

import (
	"time"

	"github.com/Dhoini/seatsync/internal/domain"
)

// Model is the pricing model applied to user seats.
type Model string

const (
	ModelPayAsYouGo   Model = "pay-as-you-go"
	ModelLicenseBased Model = "license-based"
)

// State is the calculator input.
type State struct {
	Members         []domain.OrganizationMember
	Slots           *domain.SlotAvailability
	StorageGB       float64
	FleetMapEnabled bool
}

type UserSlots struct {
	Model           Model      `json:"model"`
	TotalPurchased  int        `json:"total_purchased"`
	SlotsUsed       int        `json:"slots_used"`
	AvailableSlots  int        `json:"available_slots"`
	ExemptedSlots   int        `json:"exempted_slots"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`
	CostPerUser     Cents      `json:"cost_per_user_cents"`
	BillableUsers   int        `json:"billable_users"`
	TotalCost       Cents      `json:"total_cost_cents"`
}

type CurrentUsage struct {
	ActiveUsers        int `json:"active_users"`
	PendingInvitations int `json:"pending_invitations"`
	TotalSlotsNeeded   int `json:"total_slots_needed"`
}

type Storage struct {
	UsedGB    float64 `json:"used_gb"`
	FreeGB    float64 `json:"free_gb"`
	OverageGB float64 `json:"overage_gb"`
	Cost      Cents   `json:"cost_cents"`
}

type Features struct {
	FleetMapEnabled bool  `json:"fleet_map_enabled"`
	FleetMap        Cents `json:"fleet_map_cents"`
}

type Totals struct {
	UserLicenses Cents `json:"user_licenses_cents"`
	Storage      Cents `json:"storage_cents"`
	Features     Cents `json:"features_cents"`
	MonthlyTotal Cents `json:"monthly_total_cents"`
}

// Calculation is the full monthly cost breakdown for an organization.
type Calculation struct {
	UserSlots    UserSlots    `json:"user_slots"`
	CurrentUsage CurrentUsage `json:"current_usage"`
	Storage      Storage      `json:"storage"`
	Features     Features     `json:"features"`
	Totals       Totals       `json:"totals"`
}

// Calculate runs the calculator with DefaultPricing.
func Calculate(state State) Calculation {
	return DefaultPricing.Calculate(state)
}

// Calculate computes the cost breakdown for state.
//
// With purchased licenses the organization pays for every purchased slot;
// otherwise it pays for each active member past the first. Exempted slots widen
// capacity but never lower the cost.
func (p Pricing) Calculate(state State) Calculation {
	active, pending := countByStatus(state.Members)
	billable := max(0, active-1)

	var slots UserSlots
	if HasLicenses(state.Slots) {
		s := state.Slots
		slots = UserSlots{
			Model:          ModelLicenseBased,
			TotalPurchased: s.TotalPurchased,
			SlotsUsed:      s.UsedSlots,
			AvailableSlots: s.AvailableSlots,
			ExemptedSlots:  s.ExemptedSlots,
			CostPerUser:    p.CostPerUser,
			BillableUsers:  billable,
			TotalCost:      Cents(s.TotalPurchased) * p.CostPerUser,
		}
		if !s.CurrentPeriodEnd.IsZero() {
			next := s.CurrentPeriodEnd
			slots.NextBillingDate = &next
		}
	} else {
		slots = UserSlots{
			Model:         ModelPayAsYouGo,
			CostPerUser:   p.CostPerUser,
			BillableUsers: billable,
			TotalCost:     Cents(billable) * p.CostPerUser,
		}
	}

	usage := CurrentUsage{
		ActiveUsers:        billable,
		PendingInvitations: pending,
		TotalSlotsNeeded:   billable + pending,
	}

	overage := max(0, state.StorageGB-p.FreeStorageGB)
	storage := Storage{
		UsedGB:    state.StorageGB,
		FreeGB:    p.FreeStorageGB,
		OverageGB: overage,
		Cost:      p.storageCost(overage),
	}

	features := Features{FleetMapEnabled: state.FleetMapEnabled}
	if state.FleetMapEnabled {
		features.FleetMap = p.FleetMapMonthly
	}

	totals := Totals{
		UserLicenses: slots.TotalCost,
		Storage:      storage.Cost,
		Features:     features.FleetMap,
	}
	totals.MonthlyTotal = totals.UserLicenses + totals.Storage + totals.Features

	return Calculation{
		UserSlots:    slots,
		CurrentUsage: usage,
		Storage:      storage,
		Features:     features,
		Totals:       totals,
	}
}

func countByStatus(members []domain.OrganizationMember) (active, pending int) {
	for _, m := range members {
		switch m.Status {
		case domain.MemberActive:
			active++
		case domain.MemberPending:
			pending++
		}
	}
	return active, pending
}
