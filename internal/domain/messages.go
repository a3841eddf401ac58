package domain

// MEClientRequest is a request from a participant to the matching engine
// (the payload half of OMClientRequest, spec §3/§6).
type MEClientRequest struct {
	Type     ClientRequestType
	ClientID ClientID
	TickerID TickerID
	OrderID  OrderID // client_order_id on NEW, order_id on CANCEL
	Side     Side
	Price    Price
	Qty      Qty
}

// MEClientResponse is a response from the matching engine to a participant.
type MEClientResponse struct {
	Type          ClientResponseType
	ClientID      ClientID
	TickerID      TickerID
	ClientOrderID OrderID
	MarketOrderID OrderID
	Side          Side
	Price         Price
	ExecQty       Qty
	LeavesQty     Qty
}

// MEMarketUpdate is a public market-data event emitted by the matching
// engine (spec §3/§6).
type MEMarketUpdate struct {
	Type     MarketUpdateType
	OrderID  OrderID // market_order_id, or bridging incremental seq on SNAPSHOT_*
	TickerID TickerID
	Side     Side
	Price    Price
	Qty      Qty
	Priority Priority
}

// MDPMarketUpdate is a sequenced market update as it travels the wire
// (incremental stream: seq monotone across the exchange; snapshot stream:
// seq restarts at 0 each snapshot).
type MDPMarketUpdate struct {
	Seq    uint64
	Update MEMarketUpdate
}

// OMClientRequest is a sequenced client request as it travels the order
// gateway wire (seq is per-client, strictly increasing from 1).
type OMClientRequest struct {
	Seq     uint64
	Request MEClientRequest
}

// OMClientResponse is a sequenced client response as it travels the order
// gateway wire.
type OMClientResponse struct {
	Seq      uint64
	Response MEClientResponse
}
