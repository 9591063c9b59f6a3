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
)

type RenderParams struct {
	GlobalSettings
	Path       string
	Input      io.Reader
	ValuePairs []string
}

//go:embed cmd_render_help.txt
var renderHelp string

func init() {
	renderHelp = strings.TrimSpace(internal.Colorize(renderHelp))
}

func GetRenderParams(settings GlobalSettings, source io.Reader, args []string) (*RenderParams, error) {
	flagset := flag.NewFlagSet("render", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), renderHelp)
		flagset.PrintDefaults()
	}

	params := RenderParams{
		GlobalSettings: settings,
		Input:          source,
	}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	args, params.ValuePairs = internal.CutArgs(args)

	flagset.Parse(args)

	params.Path = flagset.Arg(0)

	if params.Input == nil && params.Path == "" {
		return nil, fmt.Errorf("descriptor path is required as first positional arg")
	}

	return &params, nil
}

// Render substitutes placeholder values into a document and prints the
// result without touching a cluster. Values resolve from the environment,
// overridden by pairs after --.
func Render(ctx context.Context, params RenderParams) error {
	document, err := descriptor.ReadSource(ctx, params.Path, params.Input)
	if err != nil {
		return err
	}

	values, err := descriptor.Values(params.ValuePairs)
	if err != nil {
		return err
	}

	rendered := descriptor.Render(document, values)

	for _, name := range descriptor.Placeholders(rendered) {
		fmt.Fprintf(internal.Stderr(ctx), "warning: unresolved placeholder ${%s}\n", name)
	}

	_, err = internal.Stdout(ctx).Write(rendered)
	return err
}
