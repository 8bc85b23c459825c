// Command classfund values the class fund ledger from the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", "", "Path to classfund.toml (default: CLASSFUND_CONFIG, then config/classfund.toml)")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&valueCmd{}, "portfolio")
	commander.Register(&refreshCmd{}, "portfolio")
	commander.Register(&benchmarkCmd{}, "portfolio")
	commander.Register(&lineageCmd{}, "lineage")
	commander.Register(&versionCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
