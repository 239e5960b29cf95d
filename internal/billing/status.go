package billing

import (
	"fmt"

	"github.com/Dhoini/seatsync/internal/domain"
)

// SlotState classifies how much license capacity is left.
type SlotState string

const (
	SlotNoSlots    SlotState = "no-slots"
	SlotSufficient SlotState = "sufficient"
	SlotLow        SlotState = "low"
	SlotExhausted  SlotState = "exhausted"
)

// Severity is a presentation hint for a SlotState.
type Severity string

const (
	SeverityNormal  Severity = "normal"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type SlotStatus struct {
	State    SlotState `json:"state"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
}

// IsFreeOrganization is true iff exactly one member is active.
func IsFreeOrganization(members []domain.OrganizationMember) bool {
	active, _ := countByStatus(members)
	return active == 1
}

// HasLicenses is true iff slots exist and at least one was purchased.
func HasLicenses(slots *domain.SlotAvailability) bool {
	return slots != nil && slots.TotalPurchased > 0
}

// GetSlotStatus classifies slots against the number of seats needed.
// A nil ledger is treated as one with nothing purchased or exempted.
func GetSlotStatus(slots *domain.SlotAvailability, totalNeeded int) SlotStatus {
	if slots == nil || (slots.TotalPurchased == 0 && slots.ExemptedSlots == 0) {
		return SlotStatus{
			State:    SlotNoSlots,
			Message:  "No user licenses purchased",
			Severity: SeverityWarning,
		}
	}

	available := slots.AvailableSlots
	switch {
	case available >= totalNeeded:
		return SlotStatus{
			State:    SlotSufficient,
			Message:  fmt.Sprintf("%d of %d licenses available", available, slots.TotalPurchased+slots.ExemptedSlots),
			Severity: SeverityNormal,
		}
	case available > 0:
		return SlotStatus{
			State:    SlotLow,
			Message:  fmt.Sprintf("Only %d licenses available, %d needed", available, totalNeeded),
			Severity: SeverityWarning,
		}
	default:
		return SlotStatus{
			State:    SlotExhausted,
			Message:  "All licenses are in use",
			Severity: SeverityError,
		}
	}
}

// ShouldBlockInvitation is true iff a ledger exists and it has no free seat.
// Without a ledger the organization is pay-as-you-go and never blocked.
func ShouldBlockInvitation(slots *domain.SlotAvailability) bool {
	return slots != nil && slots.AvailableSlots <= 0
}
