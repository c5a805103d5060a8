package core

import (
	"context"
	"fmt"
)

// Mobile money operators
const (
	PaymentMethodAirtel = "AIRTEL"
	PaymentMethodTNM    = "TNM"
)

var PaymentMethods = []string{PaymentMethodAirtel, PaymentMethodTNM}

// Payment kinds
const (
	PaymentSubscription = "subscription"
	PaymentLiveSession  = "live_session"
	PaymentBook         = "book"
	PaymentBooks        = "books"
)

type PaymentStatus int

const (
	PaymentSucceeded PaymentStatus = iota
	PaymentDeclined
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentSucceeded:
		return "succeeded"
	case PaymentDeclined:
		return "declined"
	default:
		return fmt.Sprintf("PaymentStatus(%d)", int(s))
	}
}

type (
	PaymentRequest struct {
		Kind        string
		IdentityID  string
		Method      string // optional for purchases
		Phone       string // optional for purchases
		Reference   string // plan or resource ids
		Description string
	}

	PaymentResult struct {
		Status        PaymentStatus
		TransactionID string
		Reason        string // set when declined
	}

	// PaymentProcessor charges the caller through an external processor.
	// A declined charge is a PaymentResult, not an error; errors mean the processor could not be reached.
	PaymentProcessor interface {
		Charge(ctx context.Context, req PaymentRequest) (PaymentResult, error)
	}
)

func (r PaymentResult) Succeeded() bool { return r.Status == PaymentSucceeded }
