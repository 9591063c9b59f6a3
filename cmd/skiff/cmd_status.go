package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/skiff-dev/skiff/internal"
	"github.com/skiff-dev/skiff/internal/text"
	"github.com/skiff-dev/skiff/pkg/skiff"
)

type StatusParams struct {
	GlobalSettings
	Stack            string
	ResourceMappings bool
	RevisionID       int
	DiffRevisionID   int
	Context          int
}

//go:embed cmd_status_help.txt
var statusHelp string

func init() {
	statusHelp = strings.TrimSpace(internal.Colorize(statusHelp))
}

func GetStatusParams(settings GlobalSettings, args []string) (*StatusParams, error) {
	flagset := flag.NewFlagSet("status", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), statusHelp)
		flagset.PrintDefaults()
	}

	params := StatusParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)
	flagset.IntVar(&params.Context, "context", 4, "number of lines of context in diff (ignored if not comparing revisions)")
	flagset.BoolVar(&params.ResourceMappings, "mapping", false, "print stack to resource mappings. If present ignores all other args")
	flagset.Parse(args)

	params.Stack = flagset.Arg(0)

	if revision := flagset.Arg(1); revision != "" {
		revisionID, err := strconv.Atoi(revision)
		if err != nil {
			return nil, fmt.Errorf("revision must be an integer ID: %w", err)
		}
		params.RevisionID = revisionID
	}

	if revision := flagset.Arg(2); revision != "" {
		revisionID, err := strconv.Atoi(revision)
		if err != nil {
			return nil, fmt.Errorf("revision to diff must be an integer ID: %w", err)
		}
		params.DiffRevisionID = revisionID
	}

	return &params, nil
}

func Status(ctx context.Context, params StatusParams) error {
	commander, err := skiff.FromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to instantiate kubernetes client: %w", err)
	}

	if params.ResourceMappings {
		mappings, err := commander.ResourceStackMapping(ctx)
		if err != nil {
			return fmt.Errorf("failed to lookup resource to stack mappings: %w", err)
		}

		stackToResources := make(map[string][]string)
		for resource, stack := range mappings {
			stackToResources[stack] = append(stackToResources[stack], resource)
		}

		encoder := yaml.NewEncoder(internal.Stdout(ctx))
		encoder.SetIndent(2)
		return encoder.Encode(stackToResources)
	}

	allStacks, err := commander.AllRevisions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get revisions: %w", err)
	}

	if params.Stack == "" {
		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleRounded)

		tbl.AppendHeader(table.Row{"stack", "active revision", "resources"})
		for _, revisions := range allStacks {
			active := revisions.Active()
			if active == nil {
				continue
			}
			tbl.AppendRow(table.Row{revisions.Stack, active.ID, len(active.Resources)})
		}

		_, err = io.WriteString(internal.Stdout(ctx), tbl.Render()+"\n")
		return err
	}

	revisions, ok := internal.Find(allStacks, func(revisions internal.Revisions) bool {
		return revisions.Stack == params.Stack
	})
	if !ok {
		return fmt.Errorf("stack %q not found", params.Stack)
	}

	if params.RevisionID == 0 {
		var activeID int
		if active := revisions.Active(); active != nil {
			activeID = active.ID
		}

		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleRounded)

		tbl.AppendHeader(table.Row{"id", "created", "resources", "source", "active"})
		for _, revision := range revisions.History {
			tbl.AppendRow(table.Row{
				revision.ID,
				revision.CreatedAt.Format("2006-01-02 15:04:05"),
				len(revision.Resources),
				revision.Source.Ref,
				revision.ID == activeID,
			})
		}

		_, err = io.WriteString(internal.Stdout(ctx), tbl.Render()+"\n")
		return err
	}

	revision, ok := internal.Find(revisions.History, func(revision internal.Revision) bool {
		return revision.ID == params.RevisionID
	})
	if !ok {
		return fmt.Errorf("revision %d is not within history", params.RevisionID)
	}

	if params.DiffRevisionID == 0 {
		encoder := yaml.NewEncoder(internal.Stdout(ctx))
		encoder.SetIndent(2)
		return encoder.Encode(internal.CanonicalObjectMap(revision.Resources))
	}

	diffRevision, ok := internal.Find(revisions.History, func(revision internal.Revision) bool {
		return revision.ID == params.DiffRevisionID
	})
	if !ok {
		return fmt.Errorf("revision %d is not within history", params.DiffRevisionID)
	}

	a, err := text.ToYamlFile(fmt.Sprintf("revision %d", revision.ID), internal.CanonicalObjectMap(revision.Resources))
	if err != nil {
		return err
	}

	b, err := text.ToYamlFile(fmt.Sprintf("revision %d", diffRevision.ID), internal.CanonicalObjectMap(diffRevision.Resources))
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(internal.Stdout(ctx), text.DiffColorized(a, b, params.Context))
	return err
}
