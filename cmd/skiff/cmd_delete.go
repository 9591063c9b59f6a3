package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"strings"

	"github.com/skiff-dev/skiff/internal"
	"github.com/skiff-dev/skiff/pkg/skiff"
)

type DeleteParams struct {
	GlobalSettings
	Stack string
}

//go:embed cmd_delete_help.txt
var deleteHelp string

func init() {
	deleteHelp = strings.TrimSpace(internal.Colorize(deleteHelp))
}

func GetDeleteParams(settings GlobalSettings, args []string) (*DeleteParams, error) {
	flagset := flag.NewFlagSet("delete", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), deleteHelp)
		flagset.PrintDefaults()
	}

	params := DeleteParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.Parse(args)

	params.Stack = flagset.Arg(0)
	if params.Stack == "" {
		return nil, fmt.Errorf("stack is required")
	}

	return &params, nil
}

func Delete(ctx context.Context, params DeleteParams) error {
	commander, err := skiff.FromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to instantiate kubernetes client: %w", err)
	}
	return commander.Delete(ctx, params.Stack)
}
