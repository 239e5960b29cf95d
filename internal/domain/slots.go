package domain

import "time"

// SlotAvailability is the per-organization seat ledger kept in sync with the
// license subscription. AvailableSlots = TotalPurchased + ExemptedSlots - UsedSlots
// and may be negative between a downgrade and its cleanup.
type SlotAvailability struct {
	OrganizationID     string    `json:"organization_id" db:"organization_id"`
	TotalPurchased     int       `json:"total_purchased" db:"total_purchased"`
	UsedSlots          int       `json:"used_slots" db:"used_slots"`
	ExemptedSlots      int       `json:"exempted_slots" db:"exempted_slots"`
	AvailableSlots     int       `json:"available_slots" db:"available_slots"`
	CurrentPeriodStart time.Time `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end" db:"current_period_end"`
}

// NewSlotAvailability builds a ledger with AvailableSlots derived from the counts.
func NewSlotAvailability(orgID string, total, used, exempted int, start, end time.Time) SlotAvailability {
	return SlotAvailability{
		OrganizationID:     orgID,
		TotalPurchased:     total,
		UsedSlots:          used,
		ExemptedSlots:      exempted,
		AvailableSlots:     total + exempted - used,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
	}
}
