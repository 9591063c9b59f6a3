package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/skiff-dev/skiff/internal"
	"github.com/skiff-dev/skiff/pkg/skiff"
)

type DriftParams struct {
	GlobalSettings
	Stack         string
	Context       int
	ConflictsOnly bool
	Fix           bool
	Color         bool
}

//go:embed cmd_drift_help.txt
var driftHelp string

func init() {
	driftHelp = strings.TrimSpace(internal.Colorize(driftHelp))
}

func GetDriftParams(settings GlobalSettings, args []string) (*DriftParams, error) {
	flagset := flag.NewFlagSet("drift", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), driftHelp)
		flagset.PrintDefaults()
	}

	params := DriftParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)
	flagset.IntVar(&params.Context, "context", 4, "number of lines of context in diff")
	flagset.BoolVar(
		&params.ConflictsOnly,
		"conflict-only",
		true,
		""+
			"only show drift for declared state.\n"+
			"If false, will show diff against state that was not declared;\n"+
			"such as server generated annotations, status, defaults and more",
	)
	flagset.BoolVar(&params.Fix, "fix", false, "fix the drift. If present conflict-only will be true.")
	flagset.BoolVar(&params.Color, "color", term.IsTerminal(int(os.Stdout.Fd())), "outputs diff with color")

	flagset.Parse(args)

	params.Stack = flagset.Arg(0)
	if params.Stack == "" {
		return nil, fmt.Errorf("stack is required")
	}

	params.ConflictsOnly = params.ConflictsOnly || params.Fix

	return &params, nil
}

func Drift(ctx context.Context, params DriftParams) error {
	commander, err := skiff.FromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return err
	}
	return commander.Drift(ctx, skiff.DriftParams{
		Stack:         params.Stack,
		Context:       params.Context,
		ConflictsOnly: params.ConflictsOnly,
		Fix:           params.Fix,
		Color:         params.Color,
	})
}
