package domain

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusWaitingForConfirmation Status = "Waiting for confirmation"
	StatusConfirmed              Status = "Confirmed"
	StatusProcessing             Status = "Processing"
	StatusShipped                Status = "Shipped"
	StatusDelivered              Status = "Delivered"
	StatusCancelled              Status = "Cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

// forward is the index of each status along the happy path. Cancelled sits
// outside the path and is handled separately.
var forward = map[Status]int{
	StatusWaitingForConfirmation: 0,
	StatusConfirmed:              1,
	StatusProcessing:             2,
	StatusShipped:                3,
	StatusDelivered:              4,
}

func ValidStatus(s Status) bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := forward[s]
	return ok
}

func ValidPaymentStatus(p PaymentStatus) bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition implements the transition table: re-submitting the current
// status is allowed, one step forward is allowed, cancelling a non-terminal
// order is allowed, everything else is rejected.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == from {
		return true
	}
	if to == StatusCancelled {
		return true
	}
	fi, ok := forward[from]
	ti, tok := forward[to]
	return ok && tok && ti == fi+1
}

// StockAction is the inventory side effect a transition carries.
type StockAction int

const (
	StockNoop StockAction = iota
	StockDebit
	StockCredit
)

// Change is an operator request against the status workflow. PaymentStatus is
// an optional override; the empty string means none was supplied.
type Change struct {
	Status        Status
	PaymentStatus PaymentStatus
}

// Outcome is what the transition decided: the fields to persist and the
// inventory action to run alongside them, in the same transaction.
type Outcome struct {
	Status        Status
	PaymentStatus PaymentStatus
	StockAdjusted bool
	Action        StockAction
}

// Decide is the pure transition function for the order status workflow. It
// never touches storage; callers execute the returned stock action through
// the inventory ledger and persist the outcome atomically.
func Decide(o Order, ch Change) (Outcome, error) {
	if !ValidStatus(ch.Status) {
		return Outcome{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, ch.Status)
	}
	if !CanTransition(o.Status, ch.Status) {
		return Outcome{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, ch.Status)
	}

	out := Outcome{
		Status:        ch.Status,
		PaymentStatus: o.PaymentStatus,
		StockAdjusted: o.StockAdjusted,
		Action:        StockNoop,
	}

	switch {
	case ch.Status == StatusCancelled:
		// A cancelled order never settles, whatever it was before.
		out.PaymentStatus = PaymentFailed
	case ch.Status == StatusDelivered && o.IsCOD():
		out.PaymentStatus = PaymentPaid
	case ch.PaymentStatus != "":
		if !ValidPaymentStatus(ch.PaymentStatus) {
			return Outcome{}, fmt.Errorf("%w: unknown payment status %q", ErrInvalidTransition, ch.PaymentStatus)
		}
		// A settled non-COD payment is locked; the override is dropped.
		if o.IsCOD() || o.PaymentStatus != PaymentPaid {
			out.PaymentStatus = ch.PaymentStatus
		}
	}

	switch {
	case ch.Status == StatusConfirmed && !o.StockAdjusted:
		out.Action = StockDebit
		out.StockAdjusted = true
	case ch.Status == StatusCancelled && o.StockAdjusted:
		out.Action = StockCredit
		out.StockAdjusted = false
	}

	return out, nil
}
