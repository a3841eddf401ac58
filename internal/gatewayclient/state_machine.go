// Package gatewayclient implements the participant side of spec §4.6: a
// TCP client that frames outbound OMClientRequests with a per-connection
// sequence, reads OMClientResponses off the wire, and tracks each of the
// participant's own orders through an explicit lifecycle state machine.
// The state machine is grounded directly on
// yanun0323-go-hft/internal/og/state_machine.go's ApplyIntent/ApplyAck/
// ApplyFill shape, adapted from that package's own Order/OrderIntent/
// OrderAck/Fill schema to this plant's domain.MEClientRequest/
// domain.MEClientResponse types.
package gatewayclient

import (
	"errors"

	"github.com/ejyy/femto-plant/internal/domain"
)

var (
	// ErrDuplicateOrder is returned when ApplyIntent names a client order
	// id already tracked.
	ErrDuplicateOrder = errors.New("gatewayclient: order already exists")
	// ErrUnknownOrder is returned when a response names a client order id
	// the state machine has no record of.
	ErrUnknownOrder = errors.New("gatewayclient: order not found")
	// ErrInvalidTransition is returned when a response arrives for an
	// order already in a terminal state.
	ErrInvalidTransition = errors.New("gatewayclient: invalid order state transition")
)

// OrderState tracks the lifecycle of one of the participant's own orders.
type OrderState uint8

const (
	OrderStateUnknown OrderState = iota
	OrderStateNew
	OrderStateSent
	OrderStateAcked
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCanceled
	OrderStateRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderStateNew:
		return "NEW"
	case OrderStateSent:
		return "SENT"
	case OrderStateAcked:
		return "ACKED"
	case OrderStatePartFilled:
		return "PART_FILLED"
	case OrderStateFilled:
		return "FILLED"
	case OrderStateCanceled:
		return "CANCELED"
	case OrderStateRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

func isTerminal(s OrderState) bool {
	switch s {
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected:
		return true
	default:
		return false
	}
}

// Order is the client's tracked view of one outstanding order.
type Order struct {
	ClientOrderID domain.OrderID
	MarketOrderID domain.OrderID
	TickerID      domain.TickerID
	Side          domain.Side
	Price         domain.Price
	Qty           domain.Qty
	LeavesQty     domain.Qty
	State         OrderState
}

// StateMachine tracks every order this client has sent, keyed by the
// client order id it assigned.
type StateMachine struct {
	orders map[domain.OrderID]*Order
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{orders: make(map[domain.OrderID]*Order)}
}

// Order returns the tracked state for clientOrderID, if any.
func (m *StateMachine) Order(clientOrderID domain.OrderID) (*Order, bool) {
	o, ok := m.orders[clientOrderID]
	return o, ok
}

// ApplyIntent records a new order the client is about to send, in the
// Sent state (the gateway client sets this immediately before writing the
// frame — there is no separate "New" stage once a request has actually
// gone out).
func (m *StateMachine) ApplyIntent(req domain.MEClientRequest) (*Order, error) {
	if _, ok := m.orders[req.OrderID]; ok {
		return nil, ErrDuplicateOrder
	}
	o := &Order{
		ClientOrderID: req.OrderID,
		TickerID:      req.TickerID,
		Side:          req.Side,
		Price:         req.Price,
		Qty:           req.Qty,
		LeavesQty:     req.Qty,
		State:         OrderStateSent,
	}
	m.orders[o.ClientOrderID] = o
	return o, nil
}

// ApplyResponse updates the tracked order from an exchange response.
func (m *StateMachine) ApplyResponse(resp domain.MEClientResponse) (*Order, error) {
	o, ok := m.orders[resp.ClientOrderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return o, ErrInvalidTransition
	}

	o.MarketOrderID = resp.MarketOrderID
	switch resp.Type {
	case domain.ClientResponseAccepted:
		o.State = OrderStateAcked
		o.LeavesQty = resp.LeavesQty
	case domain.ClientResponseCanceled:
		o.State = OrderStateCanceled
		o.LeavesQty = 0
	case domain.ClientResponseCancelRejected:
		// Not a state transition: the cancel simply did not apply (order
		// already gone). Leave the tracked state untouched.
	case domain.ClientResponseFilled:
		o.LeavesQty = resp.LeavesQty
		if resp.LeavesQty == 0 {
			o.State = OrderStateFilled
		} else {
			o.State = OrderStatePartFilled
		}
	default:
		o.State = OrderStateUnknown
	}
	return o, nil
}
