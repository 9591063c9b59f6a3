package internal

import (
	"cmp"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Revisions is the persisted history of a stack. Exactly one revision is
// active at any time; applying appends and activates a new revision, while a
// rollback re-activates an older one without truncating history.
type Revisions struct {
	Stack       string     `json:"stack"`
	History     []Revision `json:"history"`
	ActiveIndex int        `json:"activeIndex"`
}

type Revision struct {
	ID        int                          `json:"id"`
	Source    Source                       `json:"source"`
	CreatedAt time.Time                    `json:"createdAt"`
	Resources []*unstructured.Unstructured `json:"resources"`
}

// Source records where a revision's descriptor document came from.
type Source struct {
	Ref      string `json:"ref,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

func (revisions Revisions) Active() *Revision {
	if len(revisions.History) == 0 {
		return nil
	}
	return &revisions.History[revisions.ActiveIndex]
}

// CurrentResources returns the resources of the active revision, or nil for
// a stack with no history.
func (revisions Revisions) CurrentResources() []*unstructured.Unstructured {
	active := revisions.Active()
	if active == nil {
		return nil
	}
	return active.Resources
}

// Add appends a new active revision. IDs are monotonically increasing and
// never reused, so rollback targets stay stable.
func (revisions *Revisions) Add(resources []*unstructured.Unstructured, source Source) Revision {
	var maxID int
	for _, revision := range revisions.History {
		if revision.ID > maxID {
			maxID = revision.ID
		}
	}

	revision := Revision{
		ID:        maxID + 1,
		Source:    source,
		CreatedAt: time.Now().UTC(),
		Resources: resources,
	}

	revisions.History = append(revisions.History, revision)
	revisions.ActiveIndex = len(revisions.History) - 1

	return revision
}

const (
	LabelManagedBy = "app.kubernetes.io/managed-by"
	LabelStack     = "skiff.dev/stack"
)

// AddStackMetadata stamps ownership labels on every resource before apply.
func AddStackMetadata(resources []*unstructured.Unstructured, stack string) {
	for _, resource := range resources {
		labels := resource.GetLabels()
		if labels == nil {
			labels = make(map[string]string)
		}
		labels[LabelManagedBy] = "skiff"
		labels[LabelStack] = stack
		resource.SetLabels(labels)
	}
}

// Canonical returns the identity of a resource as
// namespace.group.version.kind.name, with "_" for the cluster scope and
// "core" for the empty group. Two documents declaring the same canonical
// identity declare the same object.
func Canonical(resource *unstructured.Unstructured) string {
	gvk := resource.GetObjectKind().GroupVersionKind()

	return strings.ToLower(strings.Join(
		[]string{
			Namespace(resource),
			cmp.Or(gvk.Group, "core"),
			gvk.Version,
			resource.GetKind(),
			resource.GetName(),
		},
		".",
	))
}

func Namespace(resource *unstructured.Unstructured) string {
	return cmp.Or(resource.GetNamespace(), "_")
}

func CanonicalNameList(resources []*unstructured.Unstructured) []string {
	result := make([]string, len(resources))
	for i, resource := range resources {
		result[i] = Canonical(resource)
	}
	return result
}

func CanonicalMap(resources []*unstructured.Unstructured) map[string]*unstructured.Unstructured {
	result := make(map[string]*unstructured.Unstructured, len(resources))
	for _, resource := range resources {
		result[Canonical(resource)] = resource
	}
	return result
}

func CanonicalObjectMap(resources []*unstructured.Unstructured) map[string]any {
	result := make(map[string]any, len(resources))
	for _, resource := range resources {
		result[Canonical(resource)] = resource.Object
	}
	return result
}
