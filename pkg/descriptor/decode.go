package descriptor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	kyaml "k8s.io/apimachinery/pkg/util/yaml"

	"github.com/skiff-dev/skiff/internal"
)

// Decode splits a descriptor source into its component resources. The source
// may be a single YAML or JSON document, a JSON list, or a multi-document
// YAML stream. Empty documents are skipped.
func Decode(data []byte) ([]*unstructured.Unstructured, error) {
	// YAML must go through the stream decoder: a one-shot unmarshal of a
	// multi-document stream stops at the first document boundary.
	if isJSON(data) {
		var list internal.List[*unstructured.Unstructured]
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to decode json document: %w", err)
		}
		return compact(list), nil
	}

	decoder := kyaml.NewYAMLOrJSONDecoder(bytes.NewReader(data), 4096)

	var resources []*unstructured.Unstructured
	for i := 0; ; i++ {
		var resource unstructured.Unstructured
		if err := decoder.Decode(&resource); err != nil {
			if errors.Is(err, io.EOF) {
				return compact(resources), nil
			}
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		resources = append(resources, &resource)
	}
}

func isJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func compact(resources []*unstructured.Unstructured) []*unstructured.Unstructured {
	result := resources[:0]
	for _, resource := range resources {
		if resource == nil || len(resource.Object) == 0 {
			continue
		}
		result = append(result, resource)
	}
	return result
}

// Set is a parsed descriptor document: the resources in declaration order,
// plus typed views of the kinds skiff understands.
type Set struct {
	Resources []*unstructured.Unstructured

	Services  []Service
	Workloads []Deployment
	Routes    []Ingress
}

// Parse builds typed views over the recognized kinds of the resource list.
// A resource of a recognized kind whose body does not fit its schema is a
// parse error; unrecognized kinds are carried through untyped.
func Parse(resources []*unstructured.Unstructured) (Set, error) {
	set := Set{Resources: resources}

	for _, resource := range resources {
		var err error
		switch resource.GetKind() {
		case KindService:
			err = retype(resource, &set.Services)
		case KindDeployment:
			err = retype(resource, &set.Workloads)
		case KindIngress:
			err = retype(resource, &set.Routes)
		}
		if err != nil {
			return Set{}, fmt.Errorf("%s: %w", internal.Canonical(resource), err)
		}
	}

	return set, nil
}

func retype[T any](resource *unstructured.Unstructured, list *[]T) error {
	data, err := json.Marshal(resource.Object)
	if err != nil {
		return err
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	*list = append(*list, value)
	return nil
}
