package gatewayclient

import (
	"io"
	"net"
	"sync"

	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/errs"
	"github.com/ejyy/femto-plant/internal/logging"
	"github.com/ejyy/femto-plant/internal/wire"
)

// ResponseCallback is invoked for every MEClientResponse the exchange
// sends back, after the state machine has applied it.
type ResponseCallback func(domain.MEClientResponse)

// Client is the participant's TCP connection to the exchange order
// gateway, grounded on the teacher's line-oriented client dialing
// pattern generalized to the spec's fixed-width binary framing.
type Client struct {
	logger   *logging.Logger
	clientID domain.ClientID
	conn     net.Conn

	sm *StateMachine

	onResponse ResponseCallback

	mu              sync.Mutex
	nextOutgoingSeq uint64
}

// Dial connects to the exchange order gateway at addr.
func Dial(logger *logging.Logger, clientID domain.ClientID, addr string, onResponse ResponseCallback) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		logger:          logger,
		clientID:        clientID,
		conn:            conn,
		sm:              NewStateMachine(),
		onResponse:      onResponse,
		nextOutgoingSeq: 1,
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// StateMachine exposes the client's order-tracking state machine.
func (c *Client) StateMachine() *StateMachine { return c.sm }

// SendNew submits a new order and returns the tracked Order immediately
// in the Sent state.
func (c *Client) SendNew(tickerID domain.TickerID, clientOrderID domain.OrderID, side domain.Side, price domain.Price, qty domain.Qty) (*Order, error) {
	req := domain.MEClientRequest{
		Type:     domain.ClientRequestNew,
		ClientID: c.clientID,
		TickerID: tickerID,
		OrderID:  clientOrderID,
		Side:     side,
		Price:    price,
		Qty:      qty,
	}
	o, err := c.sm.ApplyIntent(req)
	if err != nil {
		return nil, err
	}
	if err := c.send(req); err != nil {
		return o, err
	}
	return o, nil
}

// SendCancel submits a cancel for a previously sent order.
func (c *Client) SendCancel(tickerID domain.TickerID, clientOrderID domain.OrderID) error {
	req := domain.MEClientRequest{
		Type:     domain.ClientRequestCancel,
		ClientID: c.clientID,
		TickerID: tickerID,
		OrderID:  clientOrderID,
	}
	return c.send(req)
}

func (c *Client) send(req domain.MEClientRequest) error {
	c.mu.Lock()
	seq := c.nextOutgoingSeq
	c.nextOutgoingSeq++
	c.mu.Unlock()

	var buf [wire.SizeOMClientRequest]byte
	wire.PutOMClientRequest(buf[:], domain.OMClientRequest{Seq: seq, Request: req})
	_, err := c.conn.Write(buf[:])
	return err
}

// Run reads and applies responses from the gateway until the connection
// closes or an unrecoverable read error occurs.
func (c *Client) Run() error {
	frame := make([]byte, wire.SizeOMClientResponse)
	for {
		if _, err := io.ReadFull(c.conn, frame); err != nil {
			return err
		}
		om := wire.OMClientResponseFrom(frame)
		o, err := c.sm.ApplyResponse(om.Response)
		if err != nil {
			// The gateway sent a response this client's own state machine
			// can't reconcile (unknown order, or an invalid transition out
			// of a terminal state) — a protocol inconsistency on the wire,
			// not a local invariant violation, so it's logged and dropped
			// (spec §7.1) rather than treated as fatal.
			fault := errs.NewProtocolFault("%v for client order %d", err, om.Response.ClientOrderID)
			if c.logger != nil {
				c.logger.Logf("gatewayclient: %v, dropping", fault)
			}
		}
		_ = o
		if c.onResponse != nil {
			c.onResponse(om.Response)
		}
	}
}
