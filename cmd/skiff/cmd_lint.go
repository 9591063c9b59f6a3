package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/skiff-dev/skiff/internal"
	"github.com/skiff-dev/skiff/pkg/descriptor"
	"github.com/skiff-dev/skiff/pkg/skiff"
)

type LintParams struct {
	GlobalSettings
	Path       string
	Input      io.Reader
	ValuePairs []string
	Strict     bool
}

//go:embed cmd_lint_help.txt
var lintHelp string

func init() {
	lintHelp = strings.TrimSpace(internal.Colorize(lintHelp))
}

func GetLintParams(settings GlobalSettings, source io.Reader, args []string) (*LintParams, error) {
	flagset := flag.NewFlagSet("lint", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), lintHelp)
		flagset.PrintDefaults()
	}

	params := LintParams{
		GlobalSettings: settings,
		Input:          source,
	}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.BoolVar(&params.Strict, "strict", false, "treat warnings, including unresolved placeholders, as errors")

	args, params.ValuePairs = internal.CutArgs(args)

	flagset.Parse(args)

	params.Path = flagset.Arg(0)

	if params.Input == nil && params.Path == "" {
		return nil, fmt.Errorf("descriptor path is required as first positional arg")
	}

	return &params, nil
}

// Lint validates a document without a cluster: decode, typed parse, schema
// and reference checks, and placeholder detection.
func Lint(ctx context.Context, params LintParams) error {
	document, err := descriptor.ReadSource(ctx, params.Path, params.Input)
	if err != nil {
		return err
	}

	values, err := descriptor.Values(params.ValuePairs)
	if err != nil {
		return err
	}

	rendered := descriptor.Render(document, values)

	set, warnings, err := skiff.LintSet(rendered, params.Strict)
	if err != nil {
		return err
	}

	for _, warning := range warnings {
		fmt.Fprintln(internal.Stderr(ctx), "warning:", warning)
	}

	_, err = fmt.Fprintf(
		internal.Stdout(ctx),
		"valid: %d resource(s): %d service(s), %d workload(s), %d route(s)\n",
		len(set.Resources), len(set.Services), len(set.Workloads), len(set.Routes),
	)
	return err
}
