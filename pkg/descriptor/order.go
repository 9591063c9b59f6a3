package descriptor

import (
	"slices"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Apply order follows the reference chain of the document model: namespaces
// hold everything, workloads back services, and routes forward to services.
// Unrecognized kinds apply after namespaces and before workloads since
// nothing in the model references them.
var kindRank = map[string]int{
	KindNamespace:  0,
	KindDeployment: 2,
	KindService:    3,
	KindIngress:    4,
}

func rank(resource *unstructured.Unstructured) int {
	if rank, ok := kindRank[resource.GetKind()]; ok {
		return rank
	}
	return 1
}

// SortForApply orders resources so that every resource applies before the
// resources that reference it. The sort is stable: document order is
// preserved within a rank.
func SortForApply(resources []*unstructured.Unstructured) []*unstructured.Unstructured {
	sorted := slices.Clone(resources)
	slices.SortStableFunc(sorted, func(a, b *unstructured.Unstructured) int {
		return rank(a) - rank(b)
	})
	return sorted
}

// SortForTeardown is the reverse of the apply order: routes go first so no
// traffic forwards to a service mid-teardown.
func SortForTeardown(resources []*unstructured.Unstructured) []*unstructured.Unstructured {
	sorted := SortForApply(resources)
	slices.Reverse(sorted)
	return sorted
}
