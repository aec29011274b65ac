package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/bloxradio/bloxradio-server/internal/clock"
	"github.com/bloxradio/bloxradio-server/internal/config"
)

const (
	testServerKey = "server-key"
	testSecret    = "web-secret"
)

func testConfig() *config.Config {
	return &config.Config{
		ServerPort:        3000,
		ServerEnv:         "development",
		RobloxServerKey:   testServerKey,
		WebTokenSecret:    testSecret,
		MaxSSEPerUser:     3,
		MaxSSEPerIP:       10,
		SessionTTLMs:      120_000,
		RadioTTLMs:        300_000,
		StateTTLMs:        25_000,
		StateMinGapMs:     700,
		WebTokenTTLMs:     600_000,
		JoinDedupWindowMs: 10_000,
		MuteDedupWindowMs: 1_500,
		PushHeartbeatMs:   20_000,
	}
}

func newTestState(cfg *config.Config, clk clock.Clock) *State {
	return NewState(cfg, clk, nil, zerolog.Nop())
}

func newTestApp(st *State) *fiber.App {
	app := fiber.New()
	Register(app, st)
	return app
}

func doReq(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func jsonReq(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, target, rd)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode response body: %v\nraw: %s", err, raw)
	}
	return m
}

// setPresence marks a user in-game (or not) through the public endpoint.
func setPresence(t *testing.T, app *fiber.App, username string, inGame bool) {
	t.Helper()
	req := jsonReq(t, http.MethodPost, "/presence", map[string]any{
		"username": username,
		"inGame":   inGame,
	})
	resp := doReq(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("presence setup status = %d, want 200", resp.StatusCode)
	}
}

// createSession issues a pairing code through the authenticated endpoint.
func createSession(t *testing.T, app *fiber.App, username string) (code string) {
	t.Helper()
	req := jsonReq(t, http.MethodPost, "/session/create", map[string]any{"username": username})
	req.Header.Set("x-roblox-key", testServerKey)
	resp := doReq(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session create status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	code, _ = body["code"].(string)
	if code == "" {
		t.Fatalf("session create returned no code: %v", body)
	}
	return code
}

// redeemCode verifies a pairing code and returns the minted token.
func redeemCode(t *testing.T, app *fiber.App, code string) (token string) {
	t.Helper()
	req := jsonReq(t, http.MethodPost, "/session/verify", map[string]any{"code": code})
	resp := doReq(t, app, req)
	body := decodeBody(t, resp)
	if body["ok"] != true {
		t.Fatalf("session verify failed: %v", body)
	}
	token, _ = body["token"].(string)
	if token == "" {
		t.Fatalf("session verify returned no token: %v", body)
	}
	return token
}
