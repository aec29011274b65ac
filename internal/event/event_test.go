package event

import (
	"testing"

	"github.com/bloxradio/bloxradio-server/internal/clock"
)

const (
	joinWindow = int64(10_000)
	muteWindow = int64(1_500)
	radioTTL   = int64(300_000)
)

func newTestStore(clk clock.Clock) *Store {
	return NewStore(joinWindow, muteWindow, radioTTL, clk)
}

func TestJoinCoalescing(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	s := newTestStore(clk)

	if !s.Append("alice", NewJoin(clk.NowMs())) {
		t.Fatal("first join coalesced")
	}
	clk.Advance(joinWindow - 1)
	if s.Append("alice", NewJoin(clk.NowMs())) {
		t.Error("second join within window stored, want coalesced")
	}
	clk.Advance(joinWindow)
	if !s.Append("alice", NewJoin(clk.NowMs())) {
		t.Error("join outside window coalesced, want stored")
	}

	if got := len(s.DrainGame("alice")); got != 2 {
		t.Errorf("DrainGame() returned %d events, want 2", got)
	}
}

func TestMuteCoalescing(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	s := newTestStore(clk)

	if !s.Append("alice", NewMute(clk.NowMs(), true)) {
		t.Fatal("first mute coalesced")
	}
	clk.Advance(muteWindow - 1)
	if s.Append("alice", NewMute(clk.NowMs(), true)) {
		t.Error("duplicate mute within window stored, want coalesced")
	}
	// A flip is never coalesced.
	if !s.Append("alice", NewMute(clk.NowMs(), false)) {
		t.Error("unmute after mute coalesced, want stored")
	}
}

func TestMuteCoalescingExpiresWithWindow(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	s := newTestStore(clk)

	s.Append("alice", NewMute(clk.NowMs(), true))
	clk.Advance(muteWindow)
	if !s.Append("alice", NewMute(clk.NowMs(), true)) {
		t.Error("duplicate mute outside window coalesced, want stored")
	}
}

func TestAudiencePartition(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	s := newTestStore(clk)

	s.Append("alice", NewJoin(clk.NowMs()))
	clk.Advance(muteWindow)
	s.Append("alice", NewMute(clk.NowMs(), true))

	web := s.DrainWeb("alice")
	if len(web) != 1 || web[0].Type != KindRadioMute {
		t.Errorf("DrainWeb() = %+v, want one RADIO_MUTE", web)
	}

	// The join stayed queued for the game server.
	game := s.DrainGame("alice")
	if len(game) != 1 || game[0].Type != KindRadioJoin {
		t.Errorf("DrainGame() = %+v, want one RADIO_JOIN", game)
	}

	// Both partitions are now empty.
	if got := s.DrainWeb("alice"); len(got) != 0 {
		t.Errorf("second DrainWeb() = %+v, want empty", got)
	}
	if got := s.DrainGame("alice"); len(got) != 0 {
		t.Errorf("second DrainGame() = %+v, want empty", got)
	}
}

func TestDrainPreservesOrder(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	s := newTestStore(clk)

	muted := []bool{true, false, true}
	for _, m := range muted {
		s.Append("alice", NewMute(clk.NowMs(), m))
		clk.Advance(muteWindow)
	}

	got := s.DrainWeb("alice")
	if len(got) != len(muted) {
		t.Fatalf("DrainWeb() returned %d events, want %d", len(got), len(muted))
	}
	for i, ev := range got {
		if *ev.Muted != muted[i] {
			t.Errorf("event %d muted = %v, want %v", i, *ev.Muted, muted[i])
		}
	}
}

func TestDrainSkipsExpired(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	s := newTestStore(clk)

	s.Append("alice", NewMute(clk.NowMs(), true))
	clk.Advance(radioTTL + 1)

	if got := s.DrainWeb("alice"); len(got) != 0 {
		t.Errorf("DrainWeb() = %+v, want expired event dropped", got)
	}
}

func TestSweepDropsOldAndEmptyQueues(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	s := newTestStore(clk)

	s.Append("alice", NewJoin(clk.NowMs()))
	clk.Advance(radioTTL / 2)
	s.Append("bob", NewJoin(clk.NowMs()))
	clk.Advance(radioTTL/2 + 1)

	if dropped := s.Sweep(); dropped != 1 {
		t.Errorf("Sweep() dropped = %d, want 1", dropped)
	}
	if got := s.QueueLen("alice"); got != 0 {
		t.Errorf("alice queue length = %d, want 0", got)
	}
	if got := s.QueueLen("bob"); got != 1 {
		t.Errorf("bob queue length = %d, want 1", got)
	}
}

func TestQueuesIndependentAcrossUsers(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	s := newTestStore(clk)

	s.Append("alice", NewJoin(clk.NowMs()))
	if !s.Append("bob", NewJoin(clk.NowMs())) {
		t.Error("bob's join coalesced against alice's queue")
	}
}
