package descriptor

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func loadSet(t *testing.T, document string) Set {
	t.Helper()

	resources, err := Decode([]byte(document))
	require.NoError(t, err)

	set, err := Parse(resources)
	require.NoError(t, err)

	return set
}

func TestValidateReferenceDocument(t *testing.T) {
	data, err := os.ReadFile("testdata/geoip.yaml")
	require.NoError(t, err)

	rendered := Render(data, map[string]string{
		"GEOIP_LICENSE": "license-key",
		"GEOIP_DOMAIN":  "geoip.example.com",
	})

	resources, err := Decode(rendered)
	require.NoError(t, err)

	set, err := Parse(resources)
	require.NoError(t, err)

	warnings, err := set.Validate()
	require.NoError(t, err)
	require.Empty(t, warnings)

	// The document holds together by name: the route forwards to the
	// service's named port, the service selects the workload's pods, and the
	// workload's container listens where the service targets it.
	var (
		svc      = set.Services[0]
		workload = set.Workloads[0]
		route    = set.Routes[0]
	)

	require.Equal(t, "v1", svc.APIVersion)
	require.Equal(t, "apps/v1", workload.APIVersion)
	require.Equal(t, "networking.k8s.io/v1", route.APIVersion)

	backend := route.Spec.Rules[0].HTTP.Paths[0].Backend.Service
	require.Equal(t, svc.Metadata.Name, backend.Name)
	require.Equal(t, svc.Spec.Ports[0].Name, backend.Port.Name)

	require.Equal(t, workload.Spec.Template.Metadata.Labels, svc.Spec.Selector)

	container := workload.Spec.Template.Spec.Containers[0]
	require.EqualValues(t, 8080, container.Ports[0].ContainerPort)
	require.EqualValues(t, 8080, svc.Spec.Ports[0].TargetPort.IntValue())

	port, ok := findEnv(container.Env, "GEOIP_RS_PORT")
	require.True(t, ok)
	require.Equal(t, "8080", port)
}

func findEnv(env []EnvVar, name string) (string, bool) {
	for _, variable := range env {
		if variable.Name == name {
			return variable.Value, true
		}
	}
	return "", false
}

func TestValidateSchemaViolations(t *testing.T) {
	cases := []struct {
		Name     string
		Document string
		Error    string
	}{
		{
			Name: "service port out of range",
			Document: `
apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector: {app: web}
  ports:
    - name: http
      port: 99999
`,
			Error: "port 99999 out of range 1-65535",
		},
		{
			Name: "service without ports",
			Document: `
apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector: {app: web}
`,
			Error: "at least one port is required",
		},
		{
			Name: "duplicate service port names",
			Document: `
apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector: {app: web}
  ports:
    - {name: http, port: 80}
    - {name: http, port: 8080}
`,
			Error: `duplicate port name "http"`,
		},
		{
			Name: "negative replicas",
			Document: `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  replicas: -1
  selector:
    matchLabels: {app: web}
  template:
    metadata:
      labels: {app: web}
    spec:
      containers:
        - {name: web, image: alpine}
`,
			Error: "replicas must not be negative",
		},
		{
			Name: "unknown update strategy",
			Document: `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  strategy: {type: BlueGreen}
  selector:
    matchLabels: {app: web}
  template:
    metadata:
      labels: {app: web}
    spec:
      containers:
        - {name: web, image: alpine}
`,
			Error: `unknown update strategy "BlueGreen"`,
		},
		{
			Name: "selector does not match template labels",
			Document: `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  selector:
    matchLabels: {app: web}
  template:
    metadata:
      labels: {app: api}
    spec:
      containers:
        - {name: web, image: alpine}
`,
			Error: "selector {app=web} does not match template labels {app=api}",
		},
		{
			Name: "duplicate env names",
			Document: `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  selector:
    matchLabels: {app: web}
  template:
    metadata:
      labels: {app: web}
    spec:
      containers:
        - name: web
          image: alpine
          env:
            - {name: PORT, value: "8080"}
            - {name: PORT, value: "9090"}
`,
			Error: `duplicate env name "PORT"`,
		},
		{
			Name: "missing container image",
			Document: `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  selector:
    matchLabels: {app: web}
  template:
    metadata:
      labels: {app: web}
    spec:
      containers:
        - {name: web}
`,
			Error: "image is required",
		},
		{
			Name: "ingress without pathType",
			Document: `
apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: web
spec:
  rules:
    - host: example.com
      http:
        paths:
          - path: /
            backend:
              service: {name: web, port: {name: http}}
`,
			Error: "pathType is required",
		},
		{
			Name: "ingress with unknown pathType",
			Document: `
apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: web
spec:
  rules:
    - host: example.com
      http:
        paths:
          - path: /
            pathType: Regex
            backend:
              service: {name: web, port: {name: http}}
`,
			Error: `unknown pathType "Regex"`,
		},
		{
			Name: "unsupported apiVersion for recognized kind",
			Document: `
apiVersion: extensions/v1beta1
kind: Ingress
metadata:
  name: web
spec:
  rules:
    - host: example.com
      http:
        paths:
          - path: /
            pathType: Prefix
            backend:
              service: {name: web, port: {name: http}}
`,
			Error: `unsupported apiVersion "extensions/v1beta1"`,
		},
		{
			Name: "missing name",
			Document: `
apiVersion: v1
kind: Service
spec:
  selector: {app: web}
  ports: [{name: http, port: 80}]
`,
			Error: "metadata.name is required",
		},
		{
			Name: "duplicate resource declaration",
			Document: `
apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector: {app: web}
  ports: [{name: http, port: 80}]
---
apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector: {app: web}
  ports: [{name: http, port: 80}]
`,
			Error: "duplicate resource declaration: _.core.v1.service.web",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			_, err := loadSet(t, tc.Document).Validate()
			require.ErrorContains(t, err, tc.Error)
		})
	}
}

func TestValidateReferences(t *testing.T) {
	t.Run("route backend must reference a declared service", func(t *testing.T) {
		set := loadSet(t, `
apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: web
spec:
  rules:
    - host: example.com
      http:
        paths:
          - path: /
            pathType: Prefix
            backend:
              service: {name: missing, port: {name: http}}
`)
		_, err := set.Validate()
		require.ErrorContains(t, err, `backend references unknown service "missing"`)
	})

	t.Run("route backend port must be declared by the service", func(t *testing.T) {
		set := loadSet(t, `
apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector: {app: web}
  ports: [{name: http, port: 80}]
---
apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: web
spec:
  rules:
    - host: example.com
      http:
        paths:
          - path: /
            pathType: Prefix
            backend:
              service: {name: web, port: {name: grpc}}
`)
		_, err := set.Validate()
		require.ErrorContains(t, err, `backend references port "grpc" not declared by service "web"`)
	})

	t.Run("numeric backend port matches by number", func(t *testing.T) {
		set := loadSet(t, `
apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector: {app: web}
  ports: [{name: http, port: 80}]
---
apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: web
spec:
  rules:
    - host: example.com
      http:
        paths:
          - path: /
            pathType: Prefix
            backend:
              service: {name: web, port: {number: 80}}
`)
		warnings, err := set.Validate()
		require.NoError(t, err)
		require.Len(t, warnings, 1) // no workload declared for the selector
	})

	t.Run("selector matching no declared workload is an error", func(t *testing.T) {
		set := loadSet(t, `
apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector: {app: web}
  ports: [{name: http, port: 80, targetPort: 8080}]
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: api
spec:
  selector:
    matchLabels: {app: api}
  template:
    metadata:
      labels: {app: api}
    spec:
      containers:
        - {name: api, image: alpine}
`)
		_, err := set.Validate()
		require.ErrorContains(t, err, "selector {app=web} matches no declared workload")
	})

	t.Run("selector without any declared workload is a warning", func(t *testing.T) {
		set := loadSet(t, `
apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector: {app: web}
  ports: [{name: http, port: 80}]
`)
		warnings, err := set.Validate()
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		require.Contains(t, warnings[0], "no workloads declared")
	})

	t.Run("target port must be exposed by a selected workload", func(t *testing.T) {
		set := loadSet(t, `
apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector: {app: web}
  ports: [{name: http, port: 80, targetPort: 9999}]
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  selector:
    matchLabels: {app: web}
  template:
    metadata:
      labels: {app: web}
    spec:
      containers:
        - name: web
          image: alpine
          ports: [{name: http, containerPort: 8080}]
`)
		_, err := set.Validate()
		require.ErrorContains(t, err, `target port 9999 is not exposed by any selected workload`)
	})

	t.Run("named target port resolves against container port names", func(t *testing.T) {
		set := loadSet(t, `
apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector: {app: web}
  ports: [{name: http, port: 80, targetPort: http}]
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  selector:
    matchLabels: {app: web}
  template:
    metadata:
      labels: {app: web}
    spec:
      containers:
        - name: web
          image: alpine
          ports: [{name: http, containerPort: 8080}]
`)
		warnings, err := set.Validate()
		require.NoError(t, err)
		require.Empty(t, warnings)
	})

	t.Run("cross namespace services do not satisfy a route", func(t *testing.T) {
		set := loadSet(t, `
apiVersion: v1
kind: Service
metadata:
  name: web
  namespace: other
spec:
  selector: {app: web}
  ports: [{name: http, port: 80}]
---
apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: web
spec:
  rules:
    - host: example.com
      http:
        paths:
          - path: /
            pathType: Prefix
            backend:
              service: {name: web, port: {name: http}}
`)
		_, err := set.Validate()
		require.ErrorContains(t, err, `backend references unknown service "web"`)
	})
}
