package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/bloxradio/bloxradio-server/internal/clock"
	"github.com/bloxradio/bloxradio-server/internal/pairing"
	"github.com/bloxradio/bloxradio-server/internal/radiostate"
)

// Happy pairing: presence, code issuance, redemption with a lowercased padded
// code, and a usable token.
func TestPairingHappyPath(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(1_000_000)
	st := newTestState(testConfig(), clk)
	app := newTestApp(st)

	setPresence(t, app, "Alice", true)

	code := createSession(t, app, "Alice")
	if len(code) != pairing.CodeLength {
		t.Errorf("code length = %d, want %d", len(code), pairing.CodeLength)
	}

	req := jsonReq(t, http.MethodPost, "/session/verify", map[string]any{
		"code": " " + strings.ToLower(code) + " ",
	})
	resp := doReq(t, app, req)
	body := decodeBody(t, resp)

	if body["ok"] != true {
		t.Fatalf("verify body = %v, want ok:true", body)
	}
	if body["username"] != "alice" {
		t.Errorf("username = %v, want normalized %q", body["username"], "alice")
	}
	if tok, _ := body["token"].(string); tok == "" {
		t.Error("verify returned no token")
	}
	if exp, _ := body["tokenExp"].(float64); int64(exp) != 1_000_000+testConfig().WebTokenTTLMs {
		t.Errorf("tokenExp = %v, want issue time + token TTL", body["tokenExp"])
	}
}

func TestCreateSessionRequiresServerKey(t *testing.T) {
	t.Parallel()
	app := newTestApp(newTestState(testConfig(), clock.NewManual(0)))

	req := jsonReq(t, http.MethodPost, "/session/create", map[string]any{"username": "alice"})
	resp := doReq(t, app, req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", resp.StatusCode)
	}

	req = jsonReq(t, http.MethodPost, "/session/create", map[string]any{"username": "alice"})
	req.Header.Set("x-roblox-key", "wrong")
	resp = doReq(t, app, req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status with wrong key = %d, want 401", resp.StatusCode)
	}
}

// Not-in-game gating: a code cannot be issued for a user the game server has not
// reported in-game.
func TestCreateSessionNotInGame(t *testing.T) {
	t.Parallel()
	app := newTestApp(newTestState(testConfig(), clock.NewManual(0)))

	setPresence(t, app, "Bob", false)

	req := jsonReq(t, http.MethodPost, "/session/create", map[string]any{"username": "Bob"})
	req.Header.Set("x-roblox-key", testServerKey)
	resp := doReq(t, app, req)

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "not_in_game" {
		t.Errorf("error = %v, want not_in_game", body["error"])
	}
}

// Re-pair revokes: issuing a new code invalidates tokens minted from the old one,
// and the new code redeems to a working token.
func TestReissueRevokesOldTokens(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(1_000_000)
	st := newTestState(testConfig(), clk)
	app := newTestApp(st)

	setPresence(t, app, "Alice", true)
	code1 := createSession(t, app, "Alice")
	token1 := redeemCode(t, app, code1)

	clk.Advance(10)
	code2 := createSession(t, app, "Alice")

	joinReq := jsonReq(t, http.MethodPost, "/radio/join", map[string]any{"username": "alice"})
	joinReq.Header.Set("x-radio-token", token1)
	resp := doReq(t, app, joinReq)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("join with revoked token status = %d, want 401", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "token_revoked" {
		t.Errorf("error = %v, want token_revoked", body["error"])
	}

	clk.Advance(10)
	token2 := redeemCode(t, app, code2)
	joinReq = jsonReq(t, http.MethodPost, "/radio/join", map[string]any{"username": "alice"})
	joinReq.Header.Set("x-radio-token", token2)
	resp = doReq(t, app, joinReq)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("join with fresh token status = %d, want 200", resp.StatusCode)
	}
}

func TestVerifyInvalidCode(t *testing.T) {
	t.Parallel()
	app := newTestApp(newTestState(testConfig(), clock.NewManual(0)))

	resp := doReq(t, app, jsonReq(t, http.MethodPost, "/session/verify", map[string]any{"code": "NOPE123"}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 soft failure", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["ok"] != false || body["error"] != "invalid_or_expired" {
		t.Errorf("body = %v, want ok:false invalid_or_expired", body)
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	st := newTestState(testConfig(), clk)
	app := newTestApp(st)

	setPresence(t, app, "alice", true)
	code := createSession(t, app, "alice")
	clk.Advance(testConfig().SessionTTLMs)

	resp := doReq(t, app, jsonReq(t, http.MethodPost, "/session/verify", map[string]any{"code": code}))
	if body := decodeBody(t, resp); body["error"] != "invalid_or_expired" {
		t.Errorf("error = %v, want invalid_or_expired", body["error"])
	}
}

// A code is consumed even when the user left the game before redeeming it.
func TestVerifyConsumesCodeWhenNotInGame(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	st := newTestState(testConfig(), clk)
	app := newTestApp(st)

	setPresence(t, app, "alice", true)
	code := createSession(t, app, "alice")
	setPresence(t, app, "alice", false)

	resp := doReq(t, app, jsonReq(t, http.MethodPost, "/session/verify", map[string]any{"code": code}))
	if body := decodeBody(t, resp); body["error"] != "not_in_game" {
		t.Errorf("first verify error = %v, want not_in_game", body["error"])
	}

	setPresence(t, app, "alice", true)
	resp = doReq(t, app, jsonReq(t, http.MethodPost, "/session/verify", map[string]any{"code": code}))
	if body := decodeBody(t, resp); body["error"] != "invalid_or_expired" {
		t.Errorf("second verify error = %v, want invalid_or_expired (code consumed)", body["error"])
	}
}

func TestVerifyRateLimited(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	st := newTestState(testConfig(), clk)
	app := newTestApp(st)

	// The verify scope allows 12 hits per 15s window per IP.
	for i := 0; i < 12; i++ {
		resp := doReq(t, app, jsonReq(t, http.MethodPost, "/session/verify", map[string]any{"code": "AAAAAAA"}))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("hit %d status = %d, want 200", i+1, resp.StatusCode)
		}
	}

	resp := doReq(t, app, jsonReq(t, http.MethodPost, "/session/verify", map[string]any{"code": "AAAAAAA"}))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "rate_limited" {
		t.Errorf("error = %v, want rate_limited", body["error"])
	}
}

func TestReissuePreemptsOldCode(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	st := newTestState(testConfig(), clk)
	app := newTestApp(st)

	setPresence(t, app, "alice", true)
	code1 := createSession(t, app, "alice")
	clk.Advance(10)
	_ = createSession(t, app, "alice")

	resp := doReq(t, app, jsonReq(t, http.MethodPost, "/session/verify", map[string]any{"code": code1}))
	if body := decodeBody(t, resp); body["error"] != "invalid_or_expired" {
		t.Errorf("pre-empted code error = %v, want invalid_or_expired", body["error"])
	}
}

// Issuing a new code clears the user's radio-state snapshot and kicks open push
// subscribers.
func TestReissueClearsRadioStateAndKicks(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(0)
	st := newTestState(testConfig(), clk)
	app := newTestApp(st)

	setPresence(t, app, "alice", true)
	sub, err := st.Hub.Subscribe("alice", "1.2.3.4")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	pos := 12.0
	st.Radio.Put("alice", radiostate.Update{PositionAt: &pos})

	_ = createSession(t, app, "alice")

	if _, ok := st.Radio.Get("alice"); ok {
		t.Error("radio snapshot survived re-pair")
	}

	select {
	case frame := <-sub.Frames():
		if frame.Event != "radio" || !strings.Contains(string(frame.Data), "KICK") {
			t.Errorf("frame = %s %s, want radio KICK", frame.Event, frame.Data)
		}
	default:
		t.Error("no KICK frame delivered to subscriber")
	}
}
