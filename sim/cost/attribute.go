// Package cost computes levelised technology costs from a per-region cost attribute table.
//
// The calculator builds a lifetime-indexed cash-flow schedule for every technology,
// discounts it, and divides the discounted expenses by the discounted service output.
// The mean/std pair is then transformed (linearly or in log-normal space) and offset by
// the intangible preference ("gamma") to give the value that technologies compete on.
//
// This package has no dependency on sim/; the Year-Solver imports it.
package cost

import (
	"fmt"
	"sort"
)

// Attribute indexes a column of the cost attribute table.
type Attribute int

const (
	InvestmentCost Attribute = iota
	InvestmentStd
	FuelCost
	FuelStd
	OMCost
	OMStd
	CarbonCost
	StorageCost
	Lifetime
	BuildTime
	DiscountRate
	EmissionsFactor
	LearningExponent

	// NumAttributes is the column count of a region's table.
	NumAttributes
)

var attributeNames = [NumAttributes]string{
	InvestmentCost:   "investment",
	InvestmentStd:    "investment_std",
	FuelCost:         "fuel",
	FuelStd:          "fuel_std",
	OMCost:           "om",
	OMStd:            "om_std",
	CarbonCost:       "carbon",
	StorageCost:      "storage",
	Lifetime:         "lifetime",
	BuildTime:        "build_time",
	DiscountRate:     "discount_rate",
	EmissionsFactor:  "emissions_factor",
	LearningExponent: "learning_exponent",
}

// String returns the YAML name of the attribute.
func (a Attribute) String() string {
	if a < 0 || a >= NumAttributes {
		return fmt.Sprintf("Attribute(%d)", int(a))
	}
	return attributeNames[a]
}

// ParseAttribute maps a YAML column name onto an Attribute.
func ParseAttribute(name string) (Attribute, error) {
	for i, n := range attributeNames {
		if n == name {
			return Attribute(i), nil
		}
	}
	return 0, fmt.Errorf("unknown cost attribute %q; valid: %v", name, AttributeNames())
}

// AttributeNames returns all attribute names in sorted order.
func AttributeNames() []string {
	names := make([]string, 0, NumAttributes)
	for _, n := range attributeNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
