package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/skiff-dev/skiff/internal"
	"github.com/skiff-dev/skiff/internal/k8s"
	"github.com/skiff-dev/skiff/pkg/skiff"
)

//go:embed cmd_rollback_help.txt
var rollbackHelp string

func init() {
	rollbackHelp = strings.TrimSpace(internal.Colorize(rollbackHelp))
}

type RollbackParams struct {
	GlobalSettings
	Stack      string
	RevisionID int
	Wait       time.Duration
	Poll       time.Duration
}

func GetRollbackParams(settings GlobalSettings, args []string) (*RollbackParams, error) {
	flagset := flag.NewFlagSet("rollback", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), rollbackHelp)
		flagset.PrintDefaults()
	}

	params := RollbackParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.DurationVar(&params.Wait, "wait", 0, "time to wait for stack to become ready")
	flagset.DurationVar(&params.Poll, "poll", 5*time.Second, "interval to poll resource state at. Used with --wait")

	flagset.Parse(args)

	params.Stack = flagset.Arg(0)
	if params.Stack == "" {
		return nil, fmt.Errorf("stack is required as first positional arg")
	}

	if len(flagset.Args()) < 2 {
		return nil, fmt.Errorf("revision is required as second positional arg")
	}

	revisionID, err := strconv.Atoi(flagset.Arg(1))
	if err != nil {
		return nil, fmt.Errorf("revision must be an integer ID: %w", err)
	}

	params.RevisionID = revisionID

	return &params, nil
}

func Rollback(ctx context.Context, params RollbackParams) error {
	commander, err := skiff.FromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to instantiate kubernetes client: %w", err)
	}
	return commander.Rollback(ctx, skiff.RollbackParams{
		Stack:      params.Stack,
		RevisionID: params.RevisionID,
		Wait:       k8s.WaitOptions{Timeout: params.Wait, Interval: params.Poll},
	})
}
