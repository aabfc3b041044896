// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package negotiation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Protocol errors: the action is not valid for the case's current state.
var (
	ErrCaseClosed        = errors.New("case is closed")
	ErrMaxRoundsReached  = errors.New("maximum negotiation rounds reached")
	ErrIllegalTransition = errors.New("illegal transition")
)

type RateErrorKind string

const (
	NotNumeric          RateErrorKind = "not_numeric"
	OutOfRange          RateErrorKind = "out_of_range"
	NotLowerThanCurrent RateErrorKind = "not_lower_than_current"
	TooPrecise          RateErrorKind = "too_precise"
)

// RateError reports which rate rule a candidate broke.
type RateError struct {
	Kind    RateErrorKind
	Value   string
	Min     decimal.Decimal
	Max     decimal.Decimal
	Current decimal.Decimal
	Scale   int32
}

func (e *RateError) Error() string {
	switch e.Kind {
	case NotNumeric:
		return fmt.Sprintf("rate %q is not a number", e.Value)
	case OutOfRange:
		return fmt.Sprintf("rate %s must be between %s and %s", e.Value, e.Min, e.Max)
	case NotLowerThanCurrent:
		return fmt.Sprintf("rate %s must be lower than the current rate %s", e.Value, e.Current)
	case TooPrecise:
		return fmt.Sprintf("rate %s has more than %d decimal places", e.Value, e.Scale)
	}
	return "invalid rate"
}

// Is matches another *RateError of the same kind; an empty target kind
// matches any rate error.
func (e *RateError) Is(target error) bool {
	t, ok := target.(*RateError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

type ReasonErrorKind string

const TooShort ReasonErrorKind = "reason_too_short"

type ReasonError struct {
	Kind ReasonErrorKind
	Min  int
	Got  int
}

func (e *ReasonError) Error() string {
	return fmt.Sprintf("reason must be at least %d characters (got %d)", e.Min, e.Got)
}

func (e *ReasonError) Is(target error) bool {
	t, ok := target.(*ReasonError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}
