package descriptor

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeMultiDocument(t *testing.T) {
	data, err := os.ReadFile("testdata/geoip.yaml")
	require.NoError(t, err)

	resources, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, resources, 3)

	kinds := make([]string, len(resources))
	for i, resource := range resources {
		kinds[i] = resource.GetKind()
	}
	require.Equal(t, []string{"Service", "Deployment", "Ingress"}, kinds)
}

func TestDecodeKeepsDocumentsAfterTheFirst(t *testing.T) {
	// Each document alone is well formed, so a decoder that stops at the
	// first boundary would succeed with a truncated result.
	resources, err := Decode([]byte(`
apiVersion: v1
kind: Service
metadata:
  name: a
---
apiVersion: v1
kind: Service
metadata:
  name: b
`))
	require.NoError(t, err)
	require.Len(t, resources, 2)
	require.Equal(t, "a", resources[0].GetName())
	require.Equal(t, "b", resources[1].GetName())
}

func TestDecodeSkipsEmptyDocuments(t *testing.T) {
	resources, err := Decode([]byte("---\n---\napiVersion: v1\nkind: Namespace\nmetadata:\n  name: geoip\n---\n"))
	require.NoError(t, err)
	require.Len(t, resources, 1)
	require.Equal(t, "Namespace", resources[0].GetKind())
}

func TestDecodeJSON(t *testing.T) {
	t.Run("single object", func(t *testing.T) {
		resources, err := Decode([]byte(`{"apiVersion":"v1","kind":"Service","metadata":{"name":"geoip"}}`))
		require.NoError(t, err)
		require.Len(t, resources, 1)
		require.Equal(t, "geoip", resources[0].GetName())
	})

	t.Run("list", func(t *testing.T) {
		resources, err := Decode([]byte(`[
			{"apiVersion":"v1","kind":"Service","metadata":{"name":"a"}},
			{"apiVersion":"v1","kind":"Service","metadata":{"name":"b"}}
		]`))
		require.NoError(t, err)
		require.Len(t, resources, 2)
	})
}

func TestDecodeInvalidDocument(t *testing.T) {
	_, err := Decode([]byte("---\napiVersion: v1\nkind: Service\n---\n\t- not yaml"))
	require.Error(t, err)
}

func TestParseTypedViews(t *testing.T) {
	data, err := os.ReadFile("testdata/geoip.yaml")
	require.NoError(t, err)

	resources, err := Decode(Render(data, map[string]string{
		"GEOIP_LICENSE": "license-key",
		"GEOIP_DOMAIN":  "geoip.example.com",
	}))
	require.NoError(t, err)

	set, err := Parse(resources)
	require.NoError(t, err)

	require.Len(t, set.Services, 1)
	require.Len(t, set.Workloads, 1)
	require.Len(t, set.Routes, 1)

	svc := set.Services[0]
	require.Equal(t, "geoip", svc.Metadata.Name)
	require.Equal(t, map[string]string{"name": "geoip"}, svc.Spec.Selector)
	require.Equal(t, "web", svc.Spec.Ports[0].Name)
	require.EqualValues(t, 8080, svc.Spec.Ports[0].Port)

	workload := set.Workloads[0]
	require.EqualValues(t, 1, workload.Spec.ReplicaCount())
	require.Equal(t, StrategyRollingUpdate, workload.Spec.StrategyType())
	require.Equal(t, "fissore/geoip-rs:latest", workload.Spec.Template.Spec.Containers[0].Image)

	route := set.Routes[0]
	require.Equal(t, "geoip.example.com", route.Spec.Rules[0].Host)
	require.Equal(t, "geoip", route.Spec.Rules[0].HTTP.Paths[0].Backend.Service.Name)
}

func TestParseRejectsMalformedRecognizedKind(t *testing.T) {
	resources, err := Decode([]byte(`
apiVersion: apps/v1
kind: Deployment
metadata:
  name: broken
spec:
  replicas: "not-a-number"
`))
	require.NoError(t, err)

	_, err = Parse(resources)
	require.ErrorContains(t, err, "deployment.broken")
}
