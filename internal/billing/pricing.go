package billing

import (
	"fmt"
	"math"
)

// Cents is an amount of money in US cents. Billing arithmetic stays in integers
// so totals are exact sums of their parts.
type Cents int64

// Dollars returns the amount as a float for display.
func (c Cents) Dollars() float64 {
	return float64(c) / 100
}

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}

// Pricing holds the unit prices used by the calculator.
type Pricing struct {
	CostPerUser         Cents   `mapstructure:"cost_per_user_cents"`
	FreeStorageGB       float64 `mapstructure:"free_storage_gb"`
	StorageOveragePerGB Cents   `mapstructure:"storage_overage_per_gb_cents"`
	FleetMapMonthly     Cents   `mapstructure:"fleet_map_monthly_cents"`
	BaseStorageGB       int     `mapstructure:"base_storage_gb"`
	StoragePerMemberGB  int     `mapstructure:"storage_per_member_gb"`
}

// DefaultPricing is $10 per user, 5 GB free then $0.10/GB, fleet map $10.
var DefaultPricing = Pricing{
	CostPerUser:         1000,
	FreeStorageGB:       5,
	StorageOveragePerGB: 10,
	FleetMapMonthly:     1000,
	BaseStorageGB:       5,
	StoragePerMemberGB:  5,
}

// storageCost prices overage linearly, rounded to the nearest cent.
func (p Pricing) storageCost(overageGB float64) Cents {
	return Cents(math.Round(overageGB * float64(p.StorageOveragePerGB)))
}
