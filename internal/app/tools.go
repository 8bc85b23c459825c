package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/interfaces"
	"github.com/bobmcallan/classfund/internal/services/report"
	"github.com/bobmcallan/classfund/internal/ticker"
)

// registerTools registers all MCP tools on the App's MCPServer.
func (a *App) registerTools() {
	s := a.MCPServer
	logger := a.Logger

	s.AddTool(createGetVersionTool(), handleGetVersion())
	s.AddTool(createGetPortfolioValuationTool(), handleGetPortfolioValuation(a.ValuationService, logger))
	s.AddTool(createRefreshPortfolioTool(), handleRefreshPortfolio(a.ValuationService, logger))
	s.AddTool(createGetBenchmarkTool(), handleGetBenchmark(a.ValuationService))
	s.AddTool(createGetLineageTool(), handleGetLineage(a.LineageService, logger))
}

func createGetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the classfund server version and status. Use this to verify connectivity."),
	)
}

func createGetPortfolioValuationTool() mcp.Tool {
	return mcp.NewTool("get_portfolio_valuation",
		mcp.WithDescription("Value the class fund ledger at current prices. Returns holdings with price, market value, weight and day change, plus tickers that could not be priced."),
		mcp.WithString("format",
			mcp.Description("Output format: markdown (default) or json"),
		),
	)
}

func createRefreshPortfolioTool() mcp.Tool {
	return mcp.NewTool("refresh_portfolio",
		mcp.WithDescription("Re-fetch prices and persist a new snapshot. With tickers set, only look up those prices without touching the ledger or cache."),
		mcp.WithArray("tickers",
			mcp.WithStringItems(),
			mcp.Description("Optional tickers for a diagnostic price lookup (e.g., ['AAPL', 'BRK.B'])"),
		),
	)
}

func createGetBenchmarkTool() mcp.Tool {
	return mcp.NewTool("get_benchmark",
		mcp.WithDescription("Get the S&P 500 proxy day change shown next to the portfolio."),
	)
}

func createGetLineageTool() mcp.Tool {
	return mcp.NewTool("get_lineage",
		mcp.WithDescription("Corporate action lineage: which original purchase each holding came from, unresolved holdings and exited positions."),
		mcp.WithString("ticker",
			mcp.Description("Trace a single ticker back to its explicit purchase (omit for the full audit)"),
		),
	)
}

func handleGetVersion() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := fmt.Sprintf("classfund\nVersion: %s\nBuild: %s\nCommit: %s\nStatus: OK",
			common.GetVersion(), common.GetBuild(), common.GetGitCommit())
		return textResult(result), nil
	}
}

func handleGetPortfolioValuation(valuationService interfaces.ValuationService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := valuationService.Valuate(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Portfolio valuation failed")
			return errorResult(fmt.Sprintf("Valuation error: %v", err)), nil
		}

		if request.GetString("format", "markdown") == "json" {
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return errorResult(fmt.Sprintf("Encoding error: %v", err)), nil
			}
			return textResult(string(data)), nil
		}

		bench, _ := valuationService.Benchmark(ctx)
		return textResult(report.FormatSnapshot(snap, bench)), nil
	}
}

func handleRefreshPortfolio(valuationService interfaces.ValuationService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw := request.GetStringSlice("tickers", nil)
		if len(raw) > 0 {
			tickers := ticker.ParseList(raw...)
			if len(tickers) == 0 {
				return errorResult("Error: no valid tickers supplied"), nil
			}
			quotes, missing := valuationService.LookupQuotes(ctx, tickers)
			return textResult(report.FormatQuotes(quotes, missing)), nil
		}

		snap, err := valuationService.Refresh(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Portfolio refresh failed")
			return errorResult(fmt.Sprintf("Refresh error: %v", err)), nil
		}
		return textResult(report.FormatSnapshot(snap, nil)), nil
	}
}

func handleGetBenchmark(valuationService interfaces.ValuationService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		bench, err := valuationService.Benchmark(ctx)
		if err != nil {
			return errorResult(fmt.Sprintf("Benchmark error: %v", err)), nil
		}
		return textResult(report.FormatBenchmark(bench)), nil
	}
}

func handleGetLineage(lineageService interfaces.LineageService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if raw := request.GetString("ticker", ""); raw != "" {
			t := ticker.Normalize(raw)
			if !ticker.Valid(t) {
				return errorResult(fmt.Sprintf("Error: invalid ticker %q", raw)), nil
			}
			return textResult(report.FormatTrace(lineageService.Trace(t))), nil
		}

		audit, err := lineageService.Audit(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Lineage audit failed")
			return errorResult(fmt.Sprintf("Lineage error: %v", err)), nil
		}
		return textResult(report.FormatLineage(audit)), nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
