// Package strategy implements the participant's pluggable trading logic,
// spec §6 CLI surface (ALGO_TYPE ∈ {RANDOM, MAKER, TAKER}). Strategy is a
// Go interface with one method per event kind (book update, trade, order
// update), implemented by Random, Maker and Taker; callers invoke it
// through interface method calls. Maker and
// Taker's own decision logic is explicitly out of scope (spec §1
// Non-goals name "the toy market-maker/liquidity-taker strategies"); this
// package still gives both a concrete, wireable implementation of the
// capability set so cmd/participant's ALGO_TYPE switch has something real
// to dispatch to, per SPEC_FULL.md's "their wiring into the trading
// engine is in scope" carve-out. Random's generator (spec §6) is in scope
// in full: up to 10000 (new, cancel) pairs at ~20ms intervals bounded by a
// per-ticker (clip, thresh, max_order_size, max_position, max_loss)
// 5-tuple, grounded on original_source/src/trading_engine's RANDOM algo.
package strategy

import (
	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/pbook"
)

// Strategy is the capability set the participant's trading engine
// dispatches into for every observed event. A concrete type implementing
// all three methods is the "variant" of design note §9; selecting one at
// construction time (cmd/participant's ALGO_TYPE switch) is the
// "no process-wide globals" redesign the same note calls for.
type Strategy interface {
	// OnOrderBookUpdate is called after the participant's reconstructed
	// book mutates, with the new top of book for tickerID.
	OnOrderBookUpdate(tickerID domain.TickerID, bbo pbook.BBO)
	// OnTradeUpdate is called for every public TRADE market update,
	// informational only (spec §4.10 — trades carry no book mutation of
	// their own).
	OnTradeUpdate(tickerID domain.TickerID, u domain.MEMarketUpdate)
	// OnOrderUpdate is called for every client response concerning one of
	// this participant's own orders.
	OnOrderUpdate(resp domain.MEClientResponse)
}

// TickerLimits is the per-ticker 5-tuple the CLI surface (spec §6) passes
// to RANDOM/MAKER/TAKER: "(clip, thresh, max_order_size, max_position,
// max_loss)".
type TickerLimits struct {
	// Clip bounds the random quantity a generated order requests.
	Clip domain.Qty
	// Thresh bounds how far a generated order's price may wander from the
	// strategy's reference price (ticks).
	Thresh domain.Price
	// MaxOrderSize is the hard per-order quantity ceiling.
	MaxOrderSize domain.Qty
	// MaxPosition is the configured absolute net position limit. It is
	// recorded but not enforced by any strategy in this package.
	MaxPosition domain.Qty
	// MaxLoss is the strategy's configured loss tolerance; position
	// bookkeeping internals that would let a strategy evaluate P&L
	// against it are explicitly out of scope (spec §1 Non-goals), so this
	// is recorded but not enforced by any strategy in this package.
	MaxLoss domain.Price
}
