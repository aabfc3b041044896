// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package negotiation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Policy holds the business bounds every case is negotiated under.
type Policy struct {
	MinRate         decimal.Decimal
	MaxRate         decimal.Decimal
	MaxRounds       int
	MinReason       int
	MinRejectReason int

	// Scale is the number of decimal places a rate may carry. The
	// postgres and mysql columns hold 4.
	Scale int32
}

// MaxScale is the precision of the stored rate columns.
const MaxScale = 4

func DefaultPolicy() Policy {
	return Policy{
		MinRate:         decimal.NewFromInt(1),
		MaxRate:         decimal.NewFromInt(50),
		MaxRounds:       3,
		MinReason:       10,
		MinRejectReason: 5,
		Scale:           MaxScale,
	}
}

// Validate checks the policy itself is coherent.
func (p Policy) Validate() error {
	if !p.MinRate.IsPositive() {
		return errors.New("min rate must be positive")
	}
	if !p.MaxRate.GreaterThan(p.MinRate) {
		return errors.New("max rate must be greater than min rate")
	}
	if p.MaxRate.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return errors.New("max rate must be below 100")
	}
	if p.MaxRounds < 0 {
		return errors.New("max rounds cannot be negative")
	}
	if p.Scale < 0 || p.Scale > MaxScale {
		return fmt.Errorf("rate scale must be between 0 and %d", MaxScale)
	}
	if p.MinReason < 1 || p.MinRejectReason < 1 {
		return errors.New("reason minimums must be at least 1")
	}
	return nil
}
