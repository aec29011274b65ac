package presence

import (
	"testing"

	"github.com/bloxradio/bloxradio-server/internal/clock"
)

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()
	s := NewStore(clock.NewManual(42))

	s.Set("Alice", true, true)

	rec, ok := s.Get("alice")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !rec.InGame || !rec.HavePass {
		t.Errorf("Get() = %+v, want InGame and HavePass true", rec)
	}
	if rec.UpdatedAt != 42 {
		t.Errorf("UpdatedAt = %d, want 42", rec.UpdatedAt)
	}
}

func TestKeysNormalized(t *testing.T) {
	t.Parallel()
	s := NewStore(clock.NewManual(0))

	s.Set("  ALICE ", true, false)

	if !s.InGame("alice") {
		t.Error("InGame(\"alice\") = false after Set(\"  ALICE \")")
	}
	if !s.InGame("Alice") {
		t.Error("InGame(\"Alice\") = false, lookup should normalize")
	}
}

func TestOverwrite(t *testing.T) {
	t.Parallel()
	s := NewStore(clock.NewManual(0))

	s.Set("bob", true, false)
	s.Set("bob", false, true)

	rec, _ := s.Get("bob")
	if rec.InGame {
		t.Error("InGame = true after overwrite with false")
	}
	if !rec.HavePass {
		t.Error("HavePass = false after overwrite with true")
	}
}

func TestInGameUnknownUser(t *testing.T) {
	t.Parallel()
	s := NewStore(clock.NewManual(0))

	if s.InGame("ghost") {
		t.Error("InGame() = true for unknown user")
	}
}
