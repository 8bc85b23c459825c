package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/bobmcallan/classfund/internal/app"
	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/services/report"
	"github.com/bobmcallan/classfund/internal/ticker"
)

var stdout io.Writer = os.Stdout

// openApp loads config and wires services. CLI runs log warnings only.
func openApp() (*app.App, error) {
	common.LoadVersionFromFile()
	config, err := common.LoadConfig(app.ResolveConfigPath(*configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.Logging.Level = "warn"
	return app.New(config, common.NewLoggerFromConfig(config.Logging))
}

// printMarkdown renders md for the terminal, falling back to the raw text.
func printMarkdown(md string, plain bool) {
	if plain {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err == nil {
		if out, err := r.Render(md); err == nil {
			fmt.Fprint(stdout, out)
			return
		}
	}
	fmt.Fprint(stdout, md)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// valueCmd prints the current valuation.
type valueCmd struct {
	json  bool
	plain bool
}

func (*valueCmd) Name() string     { return "value" }
func (*valueCmd) Synopsis() string { return "value the ledger at current prices" }
func (*valueCmd) Usage() string {
	return `classfund value [-json] [-plain]

  Loads the holdings ledger, prices every ticker and prints the snapshot.
`
}

func (c *valueCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "print the snapshot as JSON")
	f.BoolVar(&c.plain, "plain", false, "print markdown without terminal styling")
}

func (c *valueCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	snap, err := a.ValuationService.Valuate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error valuing portfolio: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.json {
		if err := printJSON(snap); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding snapshot: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	bench, _ := a.ValuationService.Benchmark(ctx)
	printMarkdown(report.FormatSnapshot(snap, bench), c.plain)
	return subcommands.ExitSuccess
}

// refreshCmd re-values and persists, or looks up individual prices.
type refreshCmd struct {
	tickers string
	plain   bool
}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "refresh the snapshot cache, or look up prices" }
func (*refreshCmd) Usage() string {
	return `classfund refresh [-tickers AAPL,BRK.B] [-plain]

  Without -tickers, re-values the ledger and rewrites the snapshot cache.
  With -tickers, only looks up those prices.
`
}

func (c *refreshCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.tickers, "tickers", "", "comma separated tickers for a price lookup")
	f.BoolVar(&c.plain, "plain", false, "print markdown without terminal styling")
}

func (c *refreshCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	raw := strings.TrimSpace(strings.Join(append([]string{c.tickers}, f.Args()...), ","))
	var tickers []string
	if strings.Trim(raw, ",") != "" {
		tickers = ticker.ParseList(raw)
		if len(tickers) == 0 {
			fmt.Fprintln(os.Stderr, "Error: no valid tickers supplied")
			return subcommands.ExitUsageError
		}
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if len(tickers) > 0 {
		quotes, missing := a.ValuationService.LookupQuotes(ctx, tickers)
		printMarkdown(report.FormatQuotes(quotes, missing), c.plain)
		return subcommands.ExitSuccess
	}

	snap, err := a.ValuationService.Refresh(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error refreshing portfolio: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.FormatSnapshot(snap, nil), c.plain)
	return subcommands.ExitSuccess
}

// benchmarkCmd prints the index proxy day change.
type benchmarkCmd struct {
	plain bool
}

func (*benchmarkCmd) Name() string     { return "benchmark" }
func (*benchmarkCmd) Synopsis() string { return "show the S&P 500 proxy day change" }
func (*benchmarkCmd) Usage() string {
	return `classfund benchmark [-plain]
`
}

func (c *benchmarkCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.plain, "plain", false, "print markdown without terminal styling")
}

func (c *benchmarkCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	bench, err := a.ValuationService.Benchmark(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.FormatBenchmark(bench), c.plain)
	return subcommands.ExitSuccess
}

// lineageCmd prints the audit or a single trace.
type lineageCmd struct {
	plain bool
}

func (*lineageCmd) Name() string     { return "lineage" }
func (*lineageCmd) Synopsis() string { return "show corporate action lineage" }
func (*lineageCmd) Usage() string {
	return `classfund lineage [-plain] [ticker]

  Without a ticker, prints every mapping, unresolved holdings and exits.
  With a ticker, prints the path back to its explicit purchase.
`
}

func (c *lineageCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.plain, "plain", false, "print markdown without terminal styling")
}

func (c *lineageCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Error: at most one ticker")
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if f.NArg() == 1 {
		t := ticker.Normalize(f.Arg(0))
		if !ticker.Valid(t) {
			fmt.Fprintf(os.Stderr, "Error: invalid ticker %q\n", f.Arg(0))
			return subcommands.ExitUsageError
		}
		printMarkdown(report.FormatTrace(a.LineageService.Trace(t)), c.plain)
		return subcommands.ExitSuccess
	}

	audit, err := a.LineageService.Audit(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.FormatLineage(audit), c.plain)
	return subcommands.ExitSuccess
}

// versionCmd prints build information.
type versionCmd struct{}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "print version information" }
func (*versionCmd) Usage() string            { return "classfund version\n" }
func (*versionCmd) SetFlags(_ *flag.FlagSet) {}

func (*versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	common.LoadVersionFromFile()
	fmt.Fprintf(stdout, "classfund %s\n", common.GetFullVersion())
	return subcommands.ExitSuccess
}
