package skiff

import (
	"cmp"
	"context"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/davidmdm/x/xerr"

	"github.com/skiff-dev/skiff/internal"
	"github.com/skiff-dev/skiff/internal/k8s"
	"github.com/skiff-dev/skiff/internal/text"
	"github.com/skiff-dev/skiff/pkg/descriptor"
)

type ApplyParams struct {
	Stack          string
	SourceRef      string
	Document       []byte
	Values         map[string]string
	Namespace      string
	SkipDryRun     bool
	ForceConflicts bool
	Strict         bool

	// DiffOnly renders the diff between the active revision and the would-be
	// next revision without touching the cluster.
	DiffOnly    bool
	DiffContext int
	Color       bool

	// Out exports the rendered resources to a directory, or stdout for "-",
	// instead of applying them.
	Out string

	Wait k8s.WaitOptions
}

// Apply interprets a descriptor document against the cluster: render,
// decode, validate, order, server-side apply, record the revision, and
// remove whatever the previous revision declared that this one does not.
// Re-applying an unchanged document is a no-op.
func (commander Commander) Apply(ctx context.Context, params ApplyParams) error {
	defer internal.DebugTimer(ctx, "apply")()

	rendered := descriptor.Render(params.Document, params.Values)

	set, warnings, err := LintSet(rendered, params.Strict)
	if err != nil {
		return err
	}
	for _, warning := range warnings {
		fmt.Fprintln(internal.Stderr(ctx), "warning:", warning)
	}

	resources := descriptor.SortForApply(set.Resources)

	complete := internal.DebugTimer(ctx, "looking up resource mappings")

	for _, resource := range resources {
		mapping, err := commander.k8s.LookupResourceMapping(resource)
		if err != nil {
			if meta.IsNoMatchError(err) {
				continue
			}
			return fmt.Errorf("failed to lookup resource mapping for %s: %w", internal.Canonical(resource), err)
		}
		if mapping.Scope.Name() == meta.RESTScopeNameNamespace && resource.GetNamespace() == "" {
			resource.SetNamespace(cmp.Or(params.Namespace, "default"))
		}
	}

	complete()

	internal.AddStackMetadata(resources, params.Stack)

	if params.Out != "" {
		if params.Out == "-" {
			return ExportToStdout(ctx, resources)
		}
		return ExportToFS(params.Out, params.Stack, resources)
	}

	revisions, err := commander.k8s.GetRevisions(ctx, params.Stack)
	if err != nil {
		return fmt.Errorf("failed to get revision history: %w", err)
	}

	previous := revisions.CurrentResources()

	if params.DiffOnly {
		a, err := text.ToYamlFile("current", internal.CanonicalObjectMap(previous))
		if err != nil {
			return err
		}

		b, err := text.ToYamlFile("next", internal.CanonicalObjectMap(resources))
		if err != nil {
			return err
		}

		differ := func() text.DiffFunc {
			if params.Color {
				return text.DiffColorized
			}
			return text.Diff
		}()

		_, err = fmt.Fprint(internal.Stdout(ctx), differ(a, b, params.DiffContext))
		return err
	}

	if reflect.DeepEqual(previous, resources) {
		return internal.Warning("resources are the same as previous revision: skipping apply")
	}

	if err := commander.k8s.ValidateOwnership(ctx, params.Stack, resources); err != nil {
		return fmt.Errorf("failed to validate ownership: %w", err)
	}

	if namespace := params.Namespace; namespace != "" {
		if err := commander.k8s.EnsureNamespace(ctx, namespace); err != nil {
			return fmt.Errorf("failed to ensure namespace: %w", err)
		}
	}

	applyOpts := k8s.ApplyResourcesOpts{
		SkipDryRun:     params.SkipDryRun,
		ForceConflicts: params.ForceConflicts,
	}

	if err := commander.k8s.ApplyResources(ctx, resources, applyOpts); err != nil {
		return fmt.Errorf("failed to apply resources: %w", err)
	}

	revisions.Add(resources, internal.Source{
		Ref:      descriptor.SourceRef(params.SourceRef),
		Checksum: fmt.Sprintf("%x", sha1.Sum(rendered)),
	})

	if err := commander.k8s.UpsertRevisions(ctx, params.Stack, revisions); err != nil {
		return fmt.Errorf("failed to create revision: %w", err)
	}

	removed, err := commander.k8s.RemoveOrphans(ctx, descriptor.SortForTeardown(previous), resources)
	if err != nil {
		return fmt.Errorf("failed to remove orphans: %w", err)
	}

	var (
		createdNames = internal.CanonicalNameList(resources)
		removedNames = internal.CanonicalNameList(removed)
	)

	if err := commander.k8s.UpdateResourceStackMapping(ctx, params.Stack, createdNames, removedNames); err != nil {
		return fmt.Errorf("failed to update resource stack mapping: %w", err)
	}

	if params.Wait.Timeout > 0 {
		if err := commander.k8s.WaitForReadyMany(ctx, resources, params.Wait); err != nil {
			return fmt.Errorf("stack did not become ready within wait period: to rollback use `skiff rollback`: %w", err)
		}
	}

	return nil
}

// LintSet decodes and validates a rendered document. In strict mode
// warnings, including unresolved placeholders, fail the lint.
func LintSet(rendered []byte, strict bool) (descriptor.Set, []string, error) {
	resources, err := descriptor.Decode(rendered)
	if err != nil {
		return descriptor.Set{}, nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if len(resources) == 0 {
		return descriptor.Set{}, nil, fmt.Errorf("document contains no resources")
	}

	set, err := descriptor.Parse(resources)
	if err != nil {
		return descriptor.Set{}, nil, fmt.Errorf("failed to parse document: %w", err)
	}

	warnings, err := set.Validate()
	if err != nil {
		return descriptor.Set{}, warnings, err
	}

	for _, name := range descriptor.Placeholders(rendered) {
		warnings = append(warnings, fmt.Sprintf("unresolved placeholder ${%s}: pass a value with -- %s=...", name, name))
	}

	if strict && len(warnings) > 0 {
		errs := make([]error, len(warnings))
		for i, warning := range warnings {
			errs[i] = fmt.Errorf("%s", warning)
		}
		return descriptor.Set{}, nil, xerr.MultiErrOrderedFrom("strict", errs...)
	}

	return set, warnings, nil
}

func ExportToFS(dir, stack string, resources []*unstructured.Unstructured) error {
	root := filepath.Join(dir, stack)

	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("failed to remove previous export: %w", err)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create stack output directory: %w", err)
	}

	var errs []error
	for _, resource := range resources {
		path := filepath.Join(root, internal.Canonical(resource)+".yaml")

		if err := internal.WriteYAML(path, resource.Object); err != nil {
			errs = append(errs, err)
		}
	}

	return xerr.MultiErrFrom("failed to write resource(s)", errs...)
}

func ExportToStdout(ctx context.Context, resources []*unstructured.Unstructured) error {
	output := make(map[string]any, len(resources))
	for _, resource := range resources {
		output[internal.Canonical(resource)] = resource.Object
	}

	encoder := yaml.NewEncoder(internal.Stdout(ctx))
	encoder.SetIndent(2)
	return encoder.Encode(output)
}
