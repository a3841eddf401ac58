package pbook

import (
	"testing"

	"github.com/ejyy/femto-plant/internal/domain"
)

func testConfig() Config {
	return Config{OrderPoolCapacity: 64, LevelPoolCapacity: 16}
}

func TestApplyAddBuildsBBO(t *testing.T) {
	var lastBBO BBO
	b := New(0, testConfig(), nil, func(bbo BBO) { lastBBO = bbo })

	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, OrderID: 1, Side: domain.SideBuy, Price: 100, Qty: 5, Priority: 1})
	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, OrderID: 2, Side: domain.SideSell, Price: 101, Qty: 7, Priority: 1})

	if lastBBO.BidPrice != 100 || lastBBO.BidQty != 5 {
		t.Fatalf("unexpected bid side: %+v", lastBBO)
	}
	if lastBBO.AskPrice != 101 || lastBBO.AskQty != 7 {
		t.Fatalf("unexpected ask side: %+v", lastBBO)
	}
}

func TestApplyModifyReducesQty(t *testing.T) {
	var lastBBO BBO
	b := New(0, testConfig(), nil, func(bbo BBO) { lastBBO = bbo })

	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, OrderID: 1, Side: domain.SideBuy, Price: 100, Qty: 10, Priority: 1})
	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateModify, OrderID: 1, Side: domain.SideBuy, Price: 100, Qty: 3, Priority: 1})

	if lastBBO.BidQty != 3 {
		t.Fatalf("expected reduced bid qty 3, got %d", lastBBO.BidQty)
	}
}

func TestApplyCancelRemovesLevelWhenEmpty(t *testing.T) {
	var lastBBO BBO
	b := New(0, testConfig(), nil, func(bbo BBO) { lastBBO = bbo })

	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, OrderID: 1, Side: domain.SideBuy, Price: 100, Qty: 10, Priority: 1})
	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateCancel, OrderID: 1, Side: domain.SideBuy, Price: 100})

	if lastBBO.BidPrice != 0 || lastBBO.BidQty != 0 {
		t.Fatalf("expected empty bid side after cancel, got %+v", lastBBO)
	}
}

func TestApplyClearResetsBook(t *testing.T) {
	var lastBBO BBO
	b := New(0, testConfig(), nil, func(bbo BBO) { lastBBO = bbo })

	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, OrderID: 1, Side: domain.SideBuy, Price: 100, Qty: 10, Priority: 1})
	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateClear})

	if lastBBO != (BBO{}) {
		t.Fatalf("expected zeroed BBO after CLEAR, got %+v", lastBBO)
	}
}

func TestApplyTradeInvokesOnTradeWithoutMutatingBook(t *testing.T) {
	var lastBBO BBO
	bboCalls := 0
	b := New(0, testConfig(), nil, func(bbo BBO) { lastBBO = bbo; bboCalls++ })

	var trade domain.MEMarketUpdate
	tradeCalls := 0
	b.SetOnTrade(func(u domain.MEMarketUpdate) { trade = u; tradeCalls++ })

	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, OrderID: 1, Side: domain.SideBuy, Price: 100, Qty: 5, Priority: 1})
	callsBeforeTrade := bboCalls
	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateTrade, OrderID: 1, Side: domain.SideSell, Price: 100, Qty: 5})

	if tradeCalls != 1 {
		t.Fatalf("expected onTrade called once, got %d", tradeCalls)
	}
	if trade.OrderID != 1 || trade.Price != 100 || trade.Qty != 5 {
		t.Fatalf("unexpected trade update forwarded: %+v", trade)
	}
	if bboCalls != callsBeforeTrade {
		t.Fatalf("expected TRADE not to trigger a BBO update, bboCalls went from %d to %d", callsBeforeTrade, bboCalls)
	}
	if lastBBO.BidPrice != 100 || lastBBO.BidQty != 5 {
		t.Fatalf("expected book unchanged by TRADE, got %+v", lastBBO)
	}
}

func TestApplyDescendingBidsAscendingAsks(t *testing.T) {
	b := New(0, testConfig(), nil, nil)

	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, OrderID: 1, Side: domain.SideBuy, Price: 100, Qty: 1, Priority: 1})
	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, OrderID: 2, Side: domain.SideBuy, Price: 105, Qty: 1, Priority: 1})
	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, OrderID: 3, Side: domain.SideSell, Price: 110, Qty: 1, Priority: 1})
	b.Apply(domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, OrderID: 4, Side: domain.SideSell, Price: 108, Qty: 1, Priority: 1})

	bbo := b.TopOfBook()
	if bbo.BidPrice != 105 {
		t.Fatalf("expected best bid 105, got %d", bbo.BidPrice)
	}
	if bbo.AskPrice != 108 {
		t.Fatalf("expected best ask 108, got %d", bbo.AskPrice)
	}
}
