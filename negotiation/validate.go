// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package negotiation

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ValidateRate checks a counter-offer against the default policy.
func ValidateRate(candidate string, current decimal.Decimal) (decimal.Decimal, error) {
	return DefaultPolicy().ValidateRate(candidate, current)
}

// ValidateReason checks counter justification against the default policy.
func ValidateReason(text string) (string, error) {
	return DefaultPolicy().ValidateReason(text)
}

// ValidateRate parses candidate and requires it to be inside
// [MinRate, MaxRate] and strictly below current.
func (p Policy) ValidateRate(candidate string, current decimal.Decimal) (decimal.Decimal, error) {
	rate, err := p.ValidateOfferRate(candidate)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !rate.LessThan(current) {
		return decimal.Decimal{}, &RateError{Kind: NotLowerThanCurrent, Value: rate.String(), Current: current}
	}
	return rate, nil
}

// ValidateOfferRate applies only the numeric, range and precision rules. Used for the
// platform's opening offer, which has nothing to be lower than.
func (p Policy) ValidateOfferRate(candidate string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(candidate)
	if raw == "" {
		return decimal.Decimal{}, &RateError{Kind: NotNumeric, Value: candidate}
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, &RateError{Kind: NotNumeric, Value: candidate}
	}
	if rate.LessThan(p.MinRate) || rate.GreaterThan(p.MaxRate) {
		return decimal.Decimal{}, &RateError{Kind: OutOfRange, Value: rate.String(), Min: p.MinRate, Max: p.MaxRate}
	}
	if !rate.Truncate(p.Scale).Equal(rate) {
		return decimal.Decimal{}, &RateError{Kind: TooPrecise, Value: rate.String(), Scale: p.Scale}
	}
	return rate, nil
}

func (p Policy) ValidateReason(text string) (string, error) {
	return checkReason(text, p.MinReason)
}

// ValidateRejectReason has a lower bar than a counter justification.
func (p Policy) ValidateRejectReason(text string) (string, error) {
	return checkReason(text, p.MinRejectReason)
}

func checkReason(text string, min int) (string, error) {
	trimmed := strings.TrimSpace(text)
	if n := utf8.RuneCountInString(trimmed); n < min {
		return "", &ReasonError{Kind: TooShort, Min: min, Got: n}
	}
	return trimmed, nil
}
