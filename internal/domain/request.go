package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RequestMode is the lifecycle state of a money request.
type RequestMode string

const (
	RequestOpen      RequestMode = "OPEN"
	RequestFulfilled RequestMode = "FULFILLED"
	RequestRejected  RequestMode = "REJECTED"
)

var (
	ErrRequestNotOpen        = errors.New("request is not open anymore")
	ErrRequestBadTransition  = errors.New("request can only transition to FULFILLED or REJECTED")
	ErrSelfRequestNotAllowed = errors.New("issuer and target must differ")
)

// Request is a pending money ask from an issuer to a target. It is created
// OPEN and mutated exactly once by the target's accept or reject response,
// after which the mode is terminal.
type Request struct {
	ID          string
	Amount      decimal.Decimal
	CreatedAt   time.Time
	IssuerID    int64
	TargetID    int64
	Description string
	Mode        RequestMode
}

// Validate enforces request invariants at creation time.
func (r *Request) Validate(allowSelf bool) error {
	if !r.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if r.IssuerID == r.TargetID && !allowSelf {
		return ErrSelfRequestNotAllowed
	}

	return nil
}

// Transition moves an open request to one of its terminal modes.
func (r *Request) Transition(to RequestMode) error {
	if to != RequestFulfilled && to != RequestRejected {
		return ErrRequestBadTransition
	}
	if r.Mode != RequestOpen {
		return ErrRequestNotOpen
	}

	r.Mode = to
	return nil
}
