package tradingengine

import (
	"testing"
	"time"

	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/ring"
)

func TestPollInvokesOrderCallbackAndUpdatesLiveness(t *testing.T) {
	r := ring.New[domain.MEClientResponse](16)
	var seen []domain.MEClientResponse

	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	e := New(nil, r, func(resp domain.MEClientResponse) { seen = append(seen, resp) }, clock)

	slot := r.ReserveWrite()
	*slot = domain.MEClientResponse{Type: domain.ClientResponseAccepted, ClientOrderID: 1}
	r.CommitWrite()

	now = time.Unix(1010, 0)
	e.Poll()

	if len(seen) != 1 || seen[0].ClientOrderID != 1 {
		t.Fatalf("expected callback invoked once with order 1, got %+v", seen)
	}
	if e.SilentSeconds() != 0 {
		t.Fatalf("expected zero silent seconds immediately after an event, got %f", e.SilentSeconds())
	}
}

func TestSilentSecondsAdvancesWithoutEvents(t *testing.T) {
	r := ring.New[domain.MEClientResponse](16)
	now := time.Unix(2000, 0)
	clock := func() time.Time { return now }

	e := New(nil, r, nil, clock)
	now = time.Unix(2060, 0)

	if got := e.SilentSeconds(); got != 60 {
		t.Fatalf("expected 60 silent seconds, got %f", got)
	}
}

func TestNotifyBookUpdateResetsLiveness(t *testing.T) {
	r := ring.New[domain.MEClientResponse](16)
	now := time.Unix(3000, 0)
	clock := func() time.Time { return now }

	e := New(nil, r, nil, clock)
	now = time.Unix(3030, 0)
	e.NotifyBookUpdate()

	if got := e.SilentSeconds(); got != 0 {
		t.Fatalf("expected liveness reset by book update, got %f silent seconds", got)
	}
}
