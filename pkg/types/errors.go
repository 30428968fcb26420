package types

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind identifies why a bid submission did not produce an accepted bid.
type ErrorKind string

// Known bid error kinds.
const (
	KindInvalidRequest        ErrorKind = "INVALID_REQUEST"
	KindInvalidAmount         ErrorKind = "INVALID_AMOUNT"
	KindBelowMinimumIncrement ErrorKind = "BELOW_MINIMUM_INCREMENT"
	KindLotNotFound           ErrorKind = "LOT_NOT_FOUND"
	KindProductUnavailable    ErrorKind = "PRODUCT_UNAVAILABLE"
	KindFraudRejected         ErrorKind = "FRAUD_REJECTED"
	KindBidNotHighEnough      ErrorKind = "BID_NOT_HIGH_ENOUGH"
	KindConcurrencyExhausted  ErrorKind = "CONCURRENCY_EXHAUSTED"
	KindPersistence           ErrorKind = "PERSISTENCE_ERROR"
)

// BidError is the outcome of a bid submission that was not accepted.
// Message is safe to show to the bidder.
type BidError struct {
	Kind    ErrorKind
	Message string

	// RiskScore is set for KindFraudRejected.
	RiskScore int
	// CurrentHighest is set for KindBidNotHighEnough.
	CurrentHighest decimal.Decimal

	Err error
}

func (e *BidError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BidError) Unwrap() error {
	return e.Err
}

// Is matches any BidError of the same kind, so callers can write
// errors.Is(err, types.ErrFraudRejected).
func (e *BidError) Is(target error) bool {
	t, ok := target.(*BidError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidRequest        = &BidError{Kind: KindInvalidRequest, Message: "Invalid bid data"}
	ErrInvalidAmount         = &BidError{Kind: KindInvalidAmount, Message: "Bid amount must be positive"}
	ErrBelowMinimumIncrement = &BidError{Kind: KindBelowMinimumIncrement, Message: "Minimum bid increment is $0.50"}
	ErrLotNotFound           = &BidError{Kind: KindLotNotFound, Message: "Could not verify product information"}
	ErrProductUnavailable    = &BidError{Kind: KindProductUnavailable, Message: "This product is no longer available"}
	ErrFraudRejected         = &BidError{Kind: KindFraudRejected, Message: "Your bid was flagged by our system. Please contact support if you believe this is an error."}
	ErrBidNotHighEnough      = &BidError{Kind: KindBidNotHighEnough, Message: "Your bid must be higher than the current highest bid"}
	ErrConcurrencyExhausted  = &BidError{Kind: KindConcurrencyExhausted, Message: "Failed to place bid due to concurrent updates. Please try again."}
	ErrPersistence           = &BidError{Kind: KindPersistence, Message: "Failed to place bid. Please try again."}
)

// NewInvalidRequest reports a malformed submission.
func NewInvalidRequest(message string) *BidError {
	return &BidError{Kind: KindInvalidRequest, Message: message}
}

// NewInvalidAmount reports a non-positive amount.
func NewInvalidAmount() *BidError {
	return &BidError{Kind: KindInvalidAmount, Message: ErrInvalidAmount.Message}
}

// NewBelowMinimumIncrement reports an amount below the minimum increment.
func NewBelowMinimumIncrement(minIncrement decimal.Decimal) *BidError {
	return &BidError{
		Kind:    KindBelowMinimumIncrement,
		Message: "Minimum bid increment is " + FormatAmount(minIncrement),
	}
}

// NewLotNotFound reports that the lot catalog has no such lot.
func NewLotNotFound(lotID string, err error) *BidError {
	return &BidError{Kind: KindLotNotFound, Message: ErrLotNotFound.Message, Err: fmt.Errorf("lot %s: %w", lotID, err)}
}

// NewProductUnavailable reports a lot with no remaining quantity.
func NewProductUnavailable() *BidError {
	return &BidError{Kind: KindProductUnavailable, Message: ErrProductUnavailable.Message}
}

// NewFraudRejected reports a bid blocked by fraud screening.
func NewFraudRejected(score int) *BidError {
	return &BidError{Kind: KindFraudRejected, Message: ErrFraudRejected.Message, RiskScore: score}
}

// NewBidNotHighEnough reports a bid that does not strictly exceed the current reference price.
func NewBidNotHighEnough(current decimal.Decimal) *BidError {
	return &BidError{
		Kind:           KindBidNotHighEnough,
		Message:        "Your bid must be higher than the current highest bid of " + FormatAmount(current),
		CurrentHighest: current,
	}
}

// NewConcurrencyExhausted reports that every optimistic attempt lost a race.
func NewConcurrencyExhausted(err error) *BidError {
	return &BidError{Kind: KindConcurrencyExhausted, Message: ErrConcurrencyExhausted.Message, Err: err}
}

// NewPersistenceError wraps a storage failure that is not a concurrency conflict.
func NewPersistenceError(op string, err error) *BidError {
	return &BidError{Kind: KindPersistence, Message: ErrPersistence.Message, Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf returns the kind of the first BidError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var bidErr *BidError
	if errors.As(err, &bidErr) {
		return bidErr.Kind
	}
	return ""
}

// FraudRejectionReason is the audit reason stored on a bid blocked by fraud screening.
func FraudRejectionReason(score int) string {
	return fmt.Sprintf("Fraud risk score: %d", score)
}
