package devserver

import (
	"botconsole/clients"
	"botconsole/clients/dashboardapi"
	"botconsole/config"
	"botconsole/internal/app"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T) (*httptest.Server, *Store) {
	t.Helper()
	store := NewStore()
	server := httptest.NewServer(NewServer(nil, store).Handler())
	t.Cleanup(server.Close)
	return server, store
}

func testConfig(baseURL, transport string) *config.Config {
	cfg := config.Defaults()
	cfg.Dashboard.BaseURL = baseURL
	cfg.LogStream.Transport = transport
	cfg.UI.StartPath = "/dashboard"
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSwitchDemandsConfirmationForProduction(t *testing.T) {
	server, store := newTestServer(t)
	client := dashboardapi.NewDashboardApiClient(nil, testConfig(server.URL, config.TransportSSE))
	ctx := context.Background()

	result, err := client.SwitchTradingMode(ctx, dashboardapi.ModeProduction)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || !result.RequiresConfirmation {
		t.Fatalf("result = %+v", result)
	}
	if store.Mode() != dashboardapi.ModeSandbox {
		t.Errorf("mode = %q", store.Mode())
	}

	result, err = client.SwitchTradingModeConfirmed(ctx, dashboardapi.ModeProduction)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.CurrentMode != dashboardapi.ModeProduction || result.Warning == "" {
		t.Fatalf("confirmed result = %+v", result)
	}

	status, err := client.GetTradingModeStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.EffectiveMode() != dashboardapi.ModeProduction || status.DisplayName != "Реальная торговля" {
		t.Errorf("status = %+v", status)
	}
}

func TestInvalidModeIsRejected(t *testing.T) {
	server, _ := newTestServer(t)
	client := dashboardapi.NewDashboardApiClient(nil, testConfig(server.URL, config.TransportSSE))

	result, err := client.SwitchTradingMode(context.Background(), "paper")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || !strings.Contains(result.Message, "paper") {
		t.Errorf("result = %+v", result)
	}
}

func TestBotLogFilters(t *testing.T) {
	server, store := newTestServer(t)
	store.Append(dashboardapi.LevelInfo, dashboardapi.CategoryMarketAnalysis, "one", "")
	store.Append(dashboardapi.LevelError, dashboardapi.CategorySystemStatus, "two", "")
	store.Append(dashboardapi.LevelError, dashboardapi.CategoryRiskManagement, "three", "")
	client := dashboardapi.NewDashboardApiClient(nil, testConfig(server.URL, config.TransportSSE))
	ctx := context.Background()

	log, err := client.GetBotLog(ctx, dashboardapi.LogFilter{Level: dashboardapi.LevelError})
	if err != nil {
		t.Fatal(err)
	}
	if len(log.Entries) != 2 || log.Entries[0].Message != "three" {
		t.Errorf("entries = %+v", log.Entries)
	}
	if log.Statistics == nil || log.Statistics.ErrorCount != 2 || log.Statistics.TotalEntries != 3 {
		t.Errorf("stats = %+v", log.Statistics)
	}

	_, err = client.GetBotLog(ctx, dashboardapi.LogFilter{Level: "LOUD"})
	var statusErr *dashboardapi.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest || !strings.Contains(statusErr.Message, "LOUD") {
		t.Errorf("bad level err = %v", err)
	}

	if err := client.ClearBotLog(ctx); err != nil {
		t.Fatal(err)
	}
	if store.Stats().TotalEntries != 0 {
		t.Error("log not cleared")
	}
}

func TestSectionEndpointsRequireAccount(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/portfolio")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/api/portfolio?accountId=sandbox-acc-01")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !json.Valid(body) {
		t.Errorf("status = %d body = %s", resp.StatusCode, body)
	}
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
		Mode   string `json:"mode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Mode != "sandbox" {
		t.Errorf("health = %+v", body)
	}
}

func runSession(t *testing.T, transport string) {
	server, store := newTestServer(t)
	for i := 0; i < 12; i++ {
		store.Append(dashboardapi.LevelInfo, dashboardapi.CategoryMarketAnalysis, "seed", "")
	}
	store.Append(dashboardapi.LevelSuccess, dashboardapi.CategoryRebalancing, "latest", "")

	cfg := testConfig(server.URL, transport)
	cls := clients.NewClients(nil, cfg)
	defer cls.Close()
	session := app.NewSession(nil, cfg, cls, nil)
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if session.Loader.AccountID() != "sandbox-acc-01" {
		t.Errorf("account = %q", session.Loader.AccountID())
	}
	if session.Gate.Mode() != dashboardapi.ModeSandbox {
		t.Errorf("mode = %q", session.Gate.Mode())
	}

	if err := session.Nav.Activate(ctx, app.SectionTradingBot, app.Origin{}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "connected", func() bool { return session.Stream.State() == app.ConnConnected })
	waitFor(t, "snapshot", func() bool {
		entries := session.Stream.Entries()
		return len(entries) == initialLogs && entries[0].Message == "latest"
	})

	store.Append(dashboardapi.LevelTrade, dashboardapi.CategoryAutomaticTrading, "live", "")
	waitFor(t, "new-log", func() bool {
		entries := session.Stream.Entries()
		return len(entries) == initialLogs+1 && entries[0].Message == "live"
	})
	waitFor(t, "statistics", func() bool {
		st := session.Stream.Statistics()
		return st != nil && st.TradeCount == 1
	})

	yes := app.ConfirmFunc(func(context.Context, app.Prompt) bool { return true })
	if err := session.Gate.Run(ctx, dashboardapi.ModeProduction, yes); err != nil {
		t.Fatal(err)
	}
	if session.Gate.Mode() != dashboardapi.ModeProduction || store.Mode() != dashboardapi.ModeProduction {
		t.Errorf("mode local = %q server = %q", session.Gate.Mode(), store.Mode())
	}
	if session.Loader.AccountID() != "2000000001" {
		t.Errorf("account after switch = %q", session.Loader.AccountID())
	}

	if err := session.Gate.RunReset(ctx, yes); err != nil {
		t.Fatal(err)
	}
	if session.Gate.Mode() != dashboardapi.ModeSandbox {
		t.Errorf("mode after reset = %q", session.Gate.Mode())
	}
}

func TestSessionOverSSE(t *testing.T) {
	runSession(t, config.TransportSSE)
}

func TestSessionOverWebSocket(t *testing.T) {
	runSession(t, config.TransportWebSocket)
}
