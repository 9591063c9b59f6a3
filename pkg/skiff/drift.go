package skiff

import (
	"context"
	"fmt"

	kerrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/davidmdm/x/xerr"

	"github.com/skiff-dev/skiff/internal"
	"github.com/skiff-dev/skiff/internal/k8s"
	"github.com/skiff-dev/skiff/internal/text"
)

type DriftParams struct {
	Stack         string
	Context       int
	ConflictsOnly bool
	Fix           bool
	Color         bool
}

// Drift compares the active revision's declared state against the live
// cluster objects. With ConflictsOnly only fields the revision declares are
// compared, so server-populated defaults and status do not count as drift.
// Fix re-applies the declared state over whatever drifted.
func (commander Commander) Drift(ctx context.Context, params DriftParams) error {
	defer internal.DebugTimer(ctx, "drift")()

	revisions, err := commander.k8s.GetRevisions(ctx, params.Stack)
	if err != nil {
		return fmt.Errorf("failed to get revision history: %w", err)
	}

	declared := revisions.CurrentResources()
	if len(declared) == 0 {
		return fmt.Errorf("stack %q has no active revision", params.Stack)
	}

	var errs []error
	live := make(map[string]any, len(declared))
	for _, resource := range declared {
		actual, err := commander.k8s.GetLiveResource(ctx, resource)
		if err != nil {
			if kerrors.IsNotFound(err) {
				live[internal.Canonical(resource)] = nil
				continue
			}
			errs = append(errs, fmt.Errorf("failed to get %s: %w", internal.Canonical(resource), err))
			continue
		}

		if params.ConflictsOnly {
			live[internal.Canonical(resource)] = intersect(resource.Object, actual.Object)
		} else {
			live[internal.Canonical(resource)] = actual.Object
		}
	}
	if err := xerr.MultiErrOrderedFrom("", errs...); err != nil {
		return err
	}

	a, err := text.ToYamlFile("declared", internal.CanonicalObjectMap(declared))
	if err != nil {
		return err
	}

	b, err := text.ToYamlFile("live", live)
	if err != nil {
		return err
	}

	differ := func() text.DiffFunc {
		if params.Color {
			return text.DiffColorized
		}
		return text.Diff
	}()

	diff := differ(a, b, params.Context)

	if diff == "" {
		_, err := fmt.Fprintln(internal.Stdout(ctx), "no drift detected")
		return err
	}

	if _, err := fmt.Fprint(internal.Stdout(ctx), diff); err != nil {
		return err
	}

	if !params.Fix {
		return nil
	}

	if err := commander.k8s.ApplyResources(ctx, declared, k8s.ApplyResourcesOpts{SkipDryRun: true, ForceConflicts: true}); err != nil {
		return fmt.Errorf("failed to fix drift: %w", err)
	}

	return nil
}

// intersect prunes actual down to the shape of declared: only keys the
// declared object carries survive, recursively. Server owned fields like
// status, uid, and defaulted spec fields fall away.
func intersect(declared, actual map[string]any) map[string]any {
	if actual == nil {
		return nil
	}

	result := make(map[string]any, len(declared))
	for key, declaredValue := range declared {
		actualValue, ok := actual[key]
		if !ok {
			continue
		}

		declaredMap, declaredIsMap := declaredValue.(map[string]any)
		actualMap, actualIsMap := actualValue.(map[string]any)
		if declaredIsMap && actualIsMap {
			result[key] = intersect(declaredMap, actualMap)
			continue
		}

		declaredSlice, declaredIsSlice := declaredValue.([]any)
		actualSlice, actualIsSlice := actualValue.([]any)
		if declaredIsSlice && actualIsSlice {
			pruned := make([]any, 0, len(actualSlice))
			for i, actualElem := range actualSlice {
				if i >= len(declaredSlice) {
					pruned = append(pruned, actualElem)
					continue
				}
				declaredElem, declaredIsMap := declaredSlice[i].(map[string]any)
				actualElem, actualIsMap := actualElem.(map[string]any)
				if declaredIsMap && actualIsMap {
					pruned = append(pruned, intersect(declaredElem, actualElem))
				} else {
					pruned = append(pruned, actualSlice[i])
				}
			}
			result[key] = pruned
			continue
		}

		result[key] = actualValue
	}

	return result
}

// Revisions exposes the stored history of a stack.
func (commander Commander) Revisions(ctx context.Context, stack string) (*internal.Revisions, error) {
	return commander.k8s.GetRevisions(ctx, stack)
}

// AllRevisions exposes the stored history of every stack.
func (commander Commander) AllRevisions(ctx context.Context) ([]internal.Revisions, error) {
	return commander.k8s.GetAllRevisions(ctx)
}

// ResourceStackMapping exposes the resource ownership table.
func (commander Commander) ResourceStackMapping(ctx context.Context) (map[string]string, error) {
	return commander.k8s.GetResourceStackMapping(ctx)
}
