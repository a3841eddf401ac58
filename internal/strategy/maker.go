package strategy

import (
	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/pbook"
)

// Maker is the MAKER algo named by spec §6's ALGO_TYPE enum. Its own
// quoting/decision logic is an explicit Non-goal (spec §1: "the toy
// market-maker... strategies"); this type exists so ALGO_TYPE=MAKER has a
// concrete Strategy to dispatch to, per design note §9's tagged-variant
// redesign, rather than a missing case.
type Maker struct {
	limits map[domain.TickerID]TickerLimits
}

// NewMaker creates a MAKER strategy instance bound to limits. It observes
// every event but places no orders, since quoting logic is out of scope.
func NewMaker(limits map[domain.TickerID]TickerLimits) *Maker {
	return &Maker{limits: limits}
}

func (m *Maker) OnOrderBookUpdate(domain.TickerID, pbook.BBO)         {}
func (m *Maker) OnTradeUpdate(domain.TickerID, domain.MEMarketUpdate) {}
func (m *Maker) OnOrderUpdate(domain.MEClientResponse)                {}

var _ Strategy = (*Maker)(nil)
