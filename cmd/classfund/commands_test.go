package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"
)

// useTestConfig points the CLI at a config with an empty ledger and no
// quote providers, and captures stdout.
func useTestConfig(t *testing.T) *bytes.Buffer {
	t.Helper()
	dir := t.TempDir()
	ledger := filepath.Join(dir, "holdings.csv")
	if err := os.WriteFile(ledger, []byte("ticker,shares\n"), 0644); err != nil {
		t.Fatal(err)
	}
	config := `[ledger]
path = "` + filepath.ToSlash(ledger) + `"

[quotes]
providers = []

[cache]
path = "` + filepath.ToSlash(filepath.Join(dir, "snapshot.json")) + `"
`
	path := filepath.Join(dir, "classfund.toml")
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	prevConfig, prevStdout := *configPath, stdout
	buf := &bytes.Buffer{}
	*configPath = path
	stdout = buf
	t.Cleanup(func() {
		*configPath = prevConfig
		stdout = prevStdout
	})
	return buf
}

func run(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return cmd.Execute(context.Background(), f)
}

func TestVersionCmd(t *testing.T) {
	out := useTestConfig(t)
	if got := run(t, &versionCmd{}); got != subcommands.ExitSuccess {
		t.Fatalf("expected success, got %v", got)
	}
	if !strings.HasPrefix(out.String(), "classfund ") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestLineageCmd_Trace(t *testing.T) {
	out := useTestConfig(t)
	if got := run(t, &lineageCmd{}, "-plain", "fbin"); got != subcommands.ExitSuccess {
		t.Fatalf("expected success, got %v", got)
	}
	if !strings.Contains(out.String(), "**Purchased as:** FO") {
		t.Errorf("expected FBIN to trace to FO, got:\n%s", out.String())
	}
}

func TestLineageCmd_InvalidTicker(t *testing.T) {
	useTestConfig(t)
	if got := run(t, &lineageCmd{}, "-plain", "not a ticker!"); got != subcommands.ExitUsageError {
		t.Errorf("expected usage error, got %v", got)
	}
}

func TestValueCmd_EmptyLedgerJSON(t *testing.T) {
	out := useTestConfig(t)
	if got := run(t, &valueCmd{}, "-json"); got != subcommands.ExitSuccess {
		t.Fatalf("expected success, got %v", got)
	}
	if !strings.Contains(out.String(), `"totalMarketValue": 0`) {
		t.Errorf("expected zero total, got:\n%s", out.String())
	}
}

func TestRefreshCmd_NoValidTickers(t *testing.T) {
	useTestConfig(t)
	if got := run(t, &refreshCmd{}, "-tickers", "$$$"); got != subcommands.ExitUsageError {
		t.Errorf("expected usage error, got %v", got)
	}
}
