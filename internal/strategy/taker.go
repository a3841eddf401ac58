package strategy

import (
	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/pbook"
)

// Taker is the TAKER algo named by spec §6's ALGO_TYPE enum. Its own
// aggressing logic is an explicit Non-goal (spec §1: "the toy...
// liquidity-taker strateg[y]"); this type exists so ALGO_TYPE=TAKER has a
// concrete Strategy to dispatch to, per design note §9's tagged-variant
// redesign, rather than a missing case.
type Taker struct {
	limits map[domain.TickerID]TickerLimits
}

// NewTaker creates a TAKER strategy instance bound to limits. It observes
// every event but places no orders, since aggressing logic is out of
// scope.
func NewTaker(limits map[domain.TickerID]TickerLimits) *Taker {
	return &Taker{limits: limits}
}

func (t *Taker) OnOrderBookUpdate(domain.TickerID, pbook.BBO)         {}
func (t *Taker) OnTradeUpdate(domain.TickerID, domain.MEMarketUpdate) {}
func (t *Taker) OnOrderUpdate(domain.MEClientResponse)                {}

var _ Strategy = (*Taker)(nil)
