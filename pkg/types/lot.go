package types

import "github.com/shopspring/decimal"

// Lot is a farmer's produce listing that can receive bids.
type Lot struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Title     string          `json:"title,omitempty"`
	BasePrice decimal.Decimal `json:"base_price"`
	Quantity  int             `json:"quantity"`
}

// Available reports whether the lot can still receive bids.
func (l *Lot) Available() bool {
	return l != nil && l.Quantity > 0
}
