package domain

import (
	"strings"

	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

type OrderStatus string

const (
	StatusPlaced         OrderStatus = "PLACED"
	StatusAccepted       OrderStatus = "ACCEPTED"
	StatusRejected       OrderStatus = "REJECTED"
	StatusPaymentSuccess OrderStatus = "PAYMENT_SUCCESS"
	StatusCancelled      OrderStatus = "CANCELLED"
	// StatusDelivered is only reachable through an administrative override.
	StatusDelivered OrderStatus = "DELIVERED"
)

var statuses = []OrderStatus{
	StatusPlaced,
	StatusAccepted,
	StatusRejected,
	StatusPaymentSuccess,
	StatusCancelled,
	StatusDelivered,
}

// Allowed caller-triggered transitions. Anything missing is rejected.
var allowed = map[OrderStatus]map[OrderStatus]bool{
	StatusPlaced:         {StatusAccepted: true, StatusRejected: true, StatusCancelled: true},
	StatusAccepted:       {},
	StatusRejected:       {},
	StatusPaymentSuccess: {},
	StatusCancelled:      {},
	StatusDelivered:      {},
}

// CanTransition checks if from->to is allowed.
func CanTransition(from, to OrderStatus) bool {
	nexts := allowed[from]
	return nexts != nil && nexts[to]
}

func (s OrderStatus) Valid() bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports statuses with no outgoing transition.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(allowed[s]) == 0
}

func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", apperr.Validation("unknown order status %q", s)
	}
	return st, nil
}
