package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/skiff-dev/skiff/internal"
	"github.com/skiff-dev/skiff/internal/k8s"
	"github.com/skiff-dev/skiff/pkg/descriptor"
	"github.com/skiff-dev/skiff/pkg/skiff"
)

type ApplyParams struct {
	GlobalSettings
	Stack       string
	Path        string
	Input       io.Reader
	ValuePairs  []string
	SkipDryRun  bool
	ForceOwners bool
	Strict      bool
	DiffOnly    bool
	Context     int
	Color       bool
	Out         string
	Wait        time.Duration
	Poll        time.Duration
}

//go:embed cmd_apply_help.txt
var applyHelp string

func init() {
	applyHelp = strings.TrimSpace(internal.Colorize(applyHelp))
}

func GetApplyParams(settings GlobalSettings, source io.Reader, args []string) (*ApplyParams, error) {
	flagset := flag.NewFlagSet("apply", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), applyHelp)
		flagset.PrintDefaults()
	}

	params := ApplyParams{
		GlobalSettings: settings,
		Input:          source,
	}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.BoolVar(&params.SkipDryRun, "skip-dry-run", false, "disables the dry run pass over resources before applying them")
	flagset.BoolVar(&params.ForceOwners, "force-conflicts", false, "force apply changes on field manager conflicts")
	flagset.BoolVar(&params.Strict, "strict", false, "treat warnings, including unresolved placeholders, as errors")
	flagset.BoolVar(&params.DiffOnly, "diff-only", false, "show diff between current revision and would be applied state. Does not apply anything to cluster")
	flagset.BoolVar(&params.Color, "color", term.IsTerminal(int(os.Stdout.Fd())), "use colored output in diffs")
	flagset.IntVar(&params.Context, "context", 4, "number of lines of context in diff (ignored if not using --diff-only)")
	flagset.StringVar(&params.Out, "out", "", "if present outputs resources to directory specified, if out is - outputs to standard out")
	flagset.StringVar(&params.Namespace, "namespace", settings.Namespace, "preferred namespace for resources if they do not define one")
	flagset.DurationVar(&params.Wait, "wait", 0, "time to wait for stack to be ready")
	flagset.DurationVar(&params.Poll, "poll", 5*time.Second, "interval to poll resource state at. Used with --wait")

	args, params.ValuePairs = internal.CutArgs(args)

	flagset.Parse(args)

	params.Stack = flagset.Arg(0)
	params.Path = flagset.Arg(1)

	if params.Stack == "" {
		return nil, fmt.Errorf("stack is required as first positional arg")
	}
	if params.Input == nil && params.Path == "" {
		return nil, fmt.Errorf("descriptor path is required as second positional arg")
	}

	return &params, nil
}

func Apply(ctx context.Context, params ApplyParams) error {
	document, err := descriptor.ReadSource(ctx, params.Path, params.Input)
	if err != nil {
		return err
	}

	values, err := descriptor.Values(params.ValuePairs)
	if err != nil {
		return err
	}

	commander, err := skiff.FromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return err
	}

	return commander.Apply(ctx, skiff.ApplyParams{
		Stack:          params.Stack,
		SourceRef:      params.Path,
		Document:       document,
		Values:         values,
		Namespace:      params.Namespace,
		SkipDryRun:     params.SkipDryRun,
		ForceConflicts: params.ForceOwners,
		Strict:         params.Strict,
		DiffOnly:       params.DiffOnly,
		DiffContext:    params.Context,
		Color:          params.Color,
		Out:            params.Out,
		Wait:           k8s.WaitOptions{Timeout: params.Wait, Interval: params.Poll},
	})
}
