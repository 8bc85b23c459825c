package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/models"
)

// stooqCSV maps a stooq symbol to its daily CSV; unknown symbols get "No data".
var stooqCSV = map[string]string{
	"aaa.us": "Date,Open,High,Low,Close,Volume\n2026-03-09,1,1,1,9,1\n2026-03-10,1,1,1,10,1\n",
	"bbb.us": "Date,Open,High,Low,Close,Volume\n2026-03-09,1,1,1,48,1\n2026-03-10,1,1,1,50,1\n",
	"spy.us": "Date,Open,High,Low,Close,Volume\n2026-03-09,1,1,1,505,1\n2026-03-10,1,1,1,510.5,1\n",
}

func newStooqServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := stooqCSV[r.URL.Query().Get("s")]
		if !ok {
			body = "No data"
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeTestConfig writes a ledger and a config that prices through a local
// stooq stand-in only.
func writeTestConfig(t *testing.T, stooqURL string) string {
	t.Helper()
	dir := t.TempDir()

	ledgerPath := filepath.Join(dir, "holdings.json")
	ledger := `[{"ticker": "AAA", "shares": 10}, {"ticker": "bbb", "shares": 5}, {"ticker": "ZZZ", "shares": 1}]`
	if err := os.WriteFile(ledgerPath, []byte(ledger), 0644); err != nil {
		t.Fatalf("Failed to write ledger: %v", err)
	}

	config := `environment = "test"

[ledger]
path = "` + filepath.ToSlash(ledgerPath) + `"

[quotes]
providers = ["stooq"]
concurrency = 2

[clients.stooq]
base_url = "` + stooqURL + `"
rate_limit = 100

[cache]
path = "` + filepath.ToSlash(filepath.Join(dir, "cache", "snapshot.json")) + `"

[refresh]
enabled = false

[logging]
level = "error"
`
	configPath := filepath.Join(dir, "classfund.toml")
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("EODHD_API_KEY", "")
	t.Setenv("API_NINJAS_KEY", "")
	a, err := NewApp(writeTestConfig(t, newStooqServer(t).URL))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

// newInProcessClient creates an mcp-go in-process client connected to the given
// MCP server. Handles initialization handshake.
func newInProcessClient(t *testing.T, mcpServer *server.MCPServer) *client.Client {
	t.Helper()

	c, err := client.NewInProcessClient(mcpServer)
	if err != nil {
		t.Fatalf("Failed to create in-process client: %v", err)
	}

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Failed to start client: %v", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}
	result, err := c.CallTool(ctx, req)
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestNewApp_InitializesAllServices(t *testing.T) {
	a := newTestApp(t)

	if a.Config == nil || a.Logger == nil {
		t.Fatal("Config or Logger is nil")
	}
	if a.Store == nil {
		t.Error("Store is nil")
	}
	if a.ValuationService == nil {
		t.Error("ValuationService is nil")
	}
	if a.LineageService == nil {
		t.Error("LineageService is nil")
	}
	if a.MCPServer == nil {
		t.Error("MCPServer is nil")
	}
	if a.StartupTime.IsZero() {
		t.Error("StartupTime is zero")
	}
	if got := a.QuoteChain.Providers(); len(got) != 1 || got[0] != models.ProviderStooq {
		t.Errorf("Expected only stooq in the chain, got %v", got)
	}
}

func TestNewApp_InvalidConfigReturnsError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(configPath, []byte("[[[not toml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewApp(configPath); err == nil {
		t.Fatal("Expected error for invalid config")
	}
}

func TestNew_InvalidLineageFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lineage.json")
	if err := os.WriteFile(path, []byte(`{"edges": [{"fromTicker": "A", "toTicker": "A"}]}`), 0644); err != nil {
		t.Fatal(err)
	}

	config := common.NewDefaultConfig()
	config.Lineage.Path = path
	if _, err := New(config, common.NewSilentLogger()); err == nil {
		t.Fatal("Expected error for self-referencing lineage edge")
	}
}

func TestBuildProviders_KeepsConfiguredOrder(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Quotes.Providers = []string{"stooq", "bogus", "apininjas", "eodhd"}
	config.Clients.APINinjas.APIKey = "k"

	providers := buildProviders(config, common.NewSilentLogger())
	if len(providers) != 3 {
		t.Fatalf("Expected 3 providers, got %d", len(providers))
	}
	want := []models.Provider{models.ProviderStooq, models.ProviderAPINinjas, models.ProviderEODHD}
	for i, p := range providers {
		if p.Name() != want[i] {
			t.Errorf("provider %d: expected %s, got %s", i, want[i], p.Name())
		}
	}
	if providers[2].Enabled() {
		t.Error("EODHD without a key should be disabled")
	}
}

func TestNewApp_ValuatesThroughProviderChain(t *testing.T) {
	a := newTestApp(t)

	snap, err := a.ValuationService.Valuate(context.Background())
	if err != nil {
		t.Fatalf("Valuate failed: %v", err)
	}
	if snap.TotalMarketValue != 350 {
		t.Errorf("Expected total 350, got %v", snap.TotalMarketValue)
	}
	if len(snap.MissingTickers) != 1 || snap.MissingTickers[0] != "ZZZ" {
		t.Errorf("Expected ZZZ missing, got %v", snap.MissingTickers)
	}
	if snap.DailyChange == nil {
		t.Error("Expected a daily change from stooq previous closes")
	}

	cached, err := a.Store.Read(context.Background())
	if err != nil || cached == nil {
		t.Fatalf("Expected cache to be written, got %v (err %v)", cached, err)
	}
	if cached.TotalMarketValue != 350 {
		t.Errorf("Expected cached total 350, got %v", cached.TotalMarketValue)
	}
}

func TestNewApp_RegistersAllTools(t *testing.T) {
	a := newTestApp(t)
	c := newInProcessClient(t, a.MCPServer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	toolsResult, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}

	toolNames := make(map[string]bool)
	for _, tool := range toolsResult.Tools {
		toolNames[tool.Name] = true
	}
	for _, name := range []string{"get_version", "get_portfolio_valuation", "refresh_portfolio", "get_benchmark", "get_lineage"} {
		if !toolNames[name] {
			t.Errorf("Expected tool %q not registered", name)
		}
	}
}

func TestTools_GetVersion(t *testing.T) {
	c := newInProcessClient(t, newTestApp(t).MCPServer)

	text := resultText(t, callTool(t, c, "get_version", nil))
	if !strings.Contains(text, "Status: OK") {
		t.Errorf("Expected status in output, got: %s", text)
	}
}

func TestTools_GetPortfolioValuation(t *testing.T) {
	c := newInProcessClient(t, newTestApp(t).MCPServer)

	text := resultText(t, callTool(t, c, "get_portfolio_valuation", nil))
	if !strings.Contains(text, "$350.00") {
		t.Errorf("Expected total in markdown, got: %s", text)
	}
	if !strings.Contains(text, "**Missing prices:** ZZZ") {
		t.Errorf("Expected missing tickers, got: %s", text)
	}
	if !strings.Contains(text, "SPY Day Change") {
		t.Errorf("Expected benchmark line, got: %s", text)
	}

	jsonText := resultText(t, callTool(t, c, "get_portfolio_valuation", map[string]any{"format": "json"}))
	if !strings.Contains(jsonText, `"totalMarketValue": 350`) {
		t.Errorf("Expected JSON snapshot, got: %s", jsonText)
	}
}

func TestTools_RefreshPortfolio_TickerLookup(t *testing.T) {
	c := newInProcessClient(t, newTestApp(t).MCPServer)

	text := resultText(t, callTool(t, c, "refresh_portfolio", map[string]any{"tickers": []any{"aaa", "nope"}}))
	if !strings.Contains(text, "| AAA | $10.00 | $9.00 |") {
		t.Errorf("Expected AAA quote row, got: %s", text)
	}
	if !strings.Contains(text, "**Missing prices:** NOPE") {
		t.Errorf("Expected NOPE missing, got: %s", text)
	}

	result := callTool(t, c, "refresh_portfolio", map[string]any{"tickers": []any{"!!!"}})
	if !result.IsError {
		t.Error("Expected error for invalid tickers")
	}
}

func TestTools_GetLineage(t *testing.T) {
	c := newInProcessClient(t, newTestApp(t).MCPServer)

	text := resultText(t, callTool(t, c, "get_lineage", map[string]any{"ticker": "fbin"}))
	if !strings.Contains(text, "**Purchased as:** FO") {
		t.Errorf("Expected FBIN to resolve to FO, got: %s", text)
	}

	audit := resultText(t, callTool(t, c, "get_lineage", nil))
	if !strings.Contains(audit, "## Exits") {
		t.Errorf("Expected exits section, got: %s", audit)
	}
}

func TestNewApp_CloseIsIdempotent(t *testing.T) {
	a := newTestApp(t)
	a.Close()
	a.Close()
}
