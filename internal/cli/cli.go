// Package cli implements citectl, the operator tool for citewatch.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

type commands struct {
	Send           *SendCommand
	TestConnection *TestConnectionCommand
	Stats          *StatsCommand
	Migrate        *MigrateCommand
	Bench          *BenchCommand
	Seed           *SeedCommand
	Prune          *PruneCommand
	Status         *StatusCommand
}

func buildParser(out io.Writer) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	// Errors are returned to main rather than printed by the parser.
	parser := goflags.NewParser(&globals, goflags.HelpFlag|goflags.PassDoubleDash)
	parser.Name = "citectl"
	parser.LongDescription = "Send test citations, check transports and read attribution stats."

	cmds := &commands{
		Send:           &SendCommand{globals: &globals, out: out},
		TestConnection: &TestConnectionCommand{globals: &globals, out: out},
		Stats:          &StatsCommand{globals: &globals, out: out},
		Migrate:        &MigrateCommand{globals: &globals, out: out},
		Bench:          &BenchCommand{globals: &globals, out: out},
		Seed:           &SeedCommand{globals: &globals, out: out},
		Prune:          &PruneCommand{globals: &globals, out: out},
		Status:         &StatusCommand{globals: &globals, out: out},
	}

	parser.AddCommand("send", "Deliver one citation event", "Deliver one citation event, falling back to the form endpoint when the JSON API is unreachable.", cmds.Send)
	parser.AddCommand("test-connection", "Check both transports", "Probe the health endpoint and ping the fallback endpoint.", cmds.TestConnection)
	parser.AddCommand("stats", "Show attribution stats", "Show the overview and per-platform rollups from the local database.", cmds.Stats)
	parser.AddCommand("migrate", "Run database migrations", "Create or update the local database schema.", cmds.Migrate)
	parser.AddCommand("seed", "Seed demo data", "Generate realistic citation traffic into the local database.", cmds.Seed)
	parser.AddCommand("prune", "Delete expired events", "Delete events older than the retention period from the local database.", cmds.Prune)
	parser.AddCommand("status", "Show database status", "Print event counts and connection statistics of the local database.", cmds.Status)
	parser.AddCommand("bench", "Load test the ingestion endpoints", "Send synthetic citations from concurrent clients and report latency and transport usage.", cmds.Bench)

	return parser, &globals, cmds
}

// Run executes citectl with os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil, os.Stdout)
}

// RunWithArgs parses args (os.Args when nil) and runs the matched subcommand.
func RunWithArgs(version string, args []string, out io.Writer) error {
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Fprintf(out, "citectl %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(out)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			fmt.Fprintln(out, flagsErr.Message)
			return nil
		}
		return err
	}
	return nil
}

func (g *GlobalFlags) logger() *slog.Logger {
	level := slog.LevelWarn
	if g != nil && g.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
