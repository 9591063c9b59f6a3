package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/davidmdm/x/xcontext"

	"github.com/skiff-dev/skiff/internal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		if internal.IsWarning(err) {
			return
		}
		os.Exit(1)
	}
}

//go:embed cmd_help.txt
var rootHelp string

func init() {
	rootHelp = strings.TrimSpace(internal.Colorize(rootHelp))
}

func run() error {
	ctx, done := xcontext.WithSignalCancelation(context.Background(), syscall.SIGINT)
	defer done()

	settings := DefaultGlobalSettings()
	RegisterGlobalFlags(flag.CommandLine, &settings)

	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), rootHelp)
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}

	flag.Parse()

	ctx = internal.WithDebugFlag(ctx, &settings.Debug)

	if len(flag.Args()) == 0 {
		flag.Usage()
		return fmt.Errorf("no command provided")
	}

	subcmdArgs := flag.Args()[1:]

	switch cmd := flag.Arg(0); cmd {
	case "apply", "up":
		{
			params, err := GetApplyParams(settings, stdin(), subcmdArgs)
			if err != nil {
				return err
			}
			return Apply(ctx, *params)
		}
	case "lint", "check":
		{
			params, err := GetLintParams(settings, stdin(), subcmdArgs)
			if err != nil {
				return err
			}
			return Lint(ctx, *params)
		}
	case "render":
		{
			params, err := GetRenderParams(settings, stdin(), subcmdArgs)
			if err != nil {
				return err
			}
			return Render(ctx, *params)
		}
	case "drift":
		{
			params, err := GetDriftParams(settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Drift(ctx, *params)
		}
	case "rollback", "restore":
		{
			params, err := GetRollbackParams(settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Rollback(ctx, *params)
		}
	case "delete", "down":
		{
			params, err := GetDeleteParams(settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Delete(ctx, *params)
		}
	case "status", "inspect":
		{
			params, err := GetStatusParams(settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Status(ctx, *params)
		}
	case "version":
		{
			return Version()
		}
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func stdin() io.Reader {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return os.Stdin
}
