package gatewayclient

import (
	"testing"

	"github.com/ejyy/femto-plant/internal/domain"
)

func TestApplyIntentThenAcceptedTransitionsToAcked(t *testing.T) {
	sm := NewStateMachine()
	_, err := sm.ApplyIntent(domain.MEClientRequest{Type: domain.ClientRequestNew, OrderID: 1, Qty: 10})
	if err != nil {
		t.Fatalf("ApplyIntent: %v", err)
	}

	o, err := sm.ApplyResponse(domain.MEClientResponse{Type: domain.ClientResponseAccepted, ClientOrderID: 1, MarketOrderID: 100, LeavesQty: 10})
	if err != nil {
		t.Fatalf("ApplyResponse: %v", err)
	}
	if o.State != OrderStateAcked || o.MarketOrderID != 100 {
		t.Fatalf("unexpected order state: %+v", o)
	}
}

func TestApplyIntentDuplicateRejected(t *testing.T) {
	sm := NewStateMachine()
	sm.ApplyIntent(domain.MEClientRequest{OrderID: 1})
	if _, err := sm.ApplyIntent(domain.MEClientRequest{OrderID: 1}); err != ErrDuplicateOrder {
		t.Fatalf("expected ErrDuplicateOrder, got %v", err)
	}
}

func TestApplyResponseUnknownOrder(t *testing.T) {
	sm := NewStateMachine()
	if _, err := sm.ApplyResponse(domain.MEClientResponse{ClientOrderID: 999}); err != ErrUnknownOrder {
		t.Fatalf("expected ErrUnknownOrder, got %v", err)
	}
}

func TestApplyResponseFilledFullyTransitionsToFilled(t *testing.T) {
	sm := NewStateMachine()
	sm.ApplyIntent(domain.MEClientRequest{OrderID: 1, Qty: 10})
	sm.ApplyResponse(domain.MEClientResponse{Type: domain.ClientResponseAccepted, ClientOrderID: 1, LeavesQty: 10})

	o, err := sm.ApplyResponse(domain.MEClientResponse{Type: domain.ClientResponseFilled, ClientOrderID: 1, ExecQty: 10, LeavesQty: 0})
	if err != nil {
		t.Fatalf("ApplyResponse: %v", err)
	}
	if o.State != OrderStateFilled {
		t.Fatalf("expected FILLED, got %v", o.State)
	}
}

func TestApplyResponsePartialFillTransitionsToPartFilled(t *testing.T) {
	sm := NewStateMachine()
	sm.ApplyIntent(domain.MEClientRequest{OrderID: 1, Qty: 10})
	sm.ApplyResponse(domain.MEClientResponse{Type: domain.ClientResponseAccepted, ClientOrderID: 1, LeavesQty: 10})

	o, _ := sm.ApplyResponse(domain.MEClientResponse{Type: domain.ClientResponseFilled, ClientOrderID: 1, ExecQty: 4, LeavesQty: 6})
	if o.State != OrderStatePartFilled || o.LeavesQty != 6 {
		t.Fatalf("unexpected state after partial fill: %+v", o)
	}
}

func TestApplyResponseAfterTerminalIsInvalidTransition(t *testing.T) {
	sm := NewStateMachine()
	sm.ApplyIntent(domain.MEClientRequest{OrderID: 1, Qty: 10})
	sm.ApplyResponse(domain.MEClientResponse{Type: domain.ClientResponseCanceled, ClientOrderID: 1})

	if _, err := sm.ApplyResponse(domain.MEClientResponse{Type: domain.ClientResponseFilled, ClientOrderID: 1}); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
