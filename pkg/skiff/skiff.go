// Package skiff orchestrates the lifecycle of a stack: a named set of
// deployment descriptors applied to a cluster as one unit. The cluster's
// control plane owns reconciliation; skiff owns decoding, validation,
// ordering, revision history, and teardown.
package skiff

import (
	"context"
	"fmt"

	"github.com/skiff-dev/skiff/internal"
	"github.com/skiff-dev/skiff/internal/k8s"
	"github.com/skiff-dev/skiff/pkg/descriptor"
)

type Commander struct {
	k8s *k8s.Client
}

func FromKubeConfig(path string) (*Commander, error) {
	client, err := k8s.NewClientFromKubeConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize kubernetes client: %w", err)
	}
	return &Commander{client}, nil
}

func FromK8Client(client *k8s.Client) *Commander {
	return &Commander{client}
}

type RollbackParams struct {
	Stack      string
	RevisionID int
	Wait       k8s.WaitOptions
}

// Rollback restores a previous revision: its resources are re-applied, it
// becomes the active revision, and resources the target revision does not
// declare are removed.
func (commander Commander) Rollback(ctx context.Context, params RollbackParams) error {
	defer internal.DebugTimer(ctx, "rollback")()

	revisions, err := commander.k8s.GetRevisions(ctx, params.Stack)
	if err != nil {
		return fmt.Errorf("failed to get revisions: %w", err)
	}

	index := -1
	for i, revision := range revisions.History {
		if revision.ID == params.RevisionID {
			index = i
			break
		}
	}
	if index == -1 {
		return fmt.Errorf("revision %d is not within history", params.RevisionID)
	}

	next := revisions.History[index]

	if err := commander.k8s.ValidateOwnership(ctx, params.Stack, next.Resources); err != nil {
		return fmt.Errorf("failed to validate ownership: %w", err)
	}

	previous := revisions.CurrentResources()

	if err := commander.k8s.ApplyResources(ctx, descriptor.SortForApply(next.Resources), k8s.ApplyResourcesOpts{SkipDryRun: true}); err != nil {
		return fmt.Errorf("failed to apply resources: %w", err)
	}

	revisions.ActiveIndex = index

	if err := commander.k8s.UpsertRevisions(ctx, params.Stack, revisions); err != nil {
		return fmt.Errorf("failed to update revision history: %w", err)
	}

	removed, err := commander.k8s.RemoveOrphans(ctx, descriptor.SortForTeardown(previous), next.Resources)
	if err != nil {
		return fmt.Errorf("failed to remove orphaned resources: %w", err)
	}

	var (
		createdNames = internal.CanonicalNameList(next.Resources)
		removedNames = internal.CanonicalNameList(removed)
	)

	if err := commander.k8s.UpdateResourceStackMapping(ctx, params.Stack, createdNames, removedNames); err != nil {
		return fmt.Errorf("failed to update resource stack mapping: %w", err)
	}

	if params.Wait.Timeout > 0 {
		if err := commander.k8s.WaitForReadyMany(ctx, next.Resources, params.Wait); err != nil {
			return fmt.Errorf("stack did not become ready within wait period: %w", err)
		}
	}

	return nil
}

// Delete tears a stack down: resources go in reverse apply order, then the
// mapping entries and the revision history itself.
func (commander Commander) Delete(ctx context.Context, stack string) error {
	defer internal.DebugTimer(ctx, "delete")()

	revisions, err := commander.k8s.GetRevisions(ctx, stack)
	if err != nil {
		return fmt.Errorf("failed to get revision history for stack: %w", err)
	}

	removed, err := commander.k8s.RemoveOrphans(ctx, descriptor.SortForTeardown(revisions.CurrentResources()), nil)
	if err != nil {
		return fmt.Errorf("failed to delete resources: %w", err)
	}

	if err := commander.k8s.UpdateResourceStackMapping(ctx, stack, nil, internal.CanonicalNameList(removed)); err != nil {
		return fmt.Errorf("failed to update resource to stack mapping: %w", err)
	}

	if err := commander.k8s.DeleteRevisions(ctx, stack); err != nil {
		return fmt.Errorf("failed to delete revision history: %w", err)
	}

	return nil
}
