package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skiff-dev/skiff/internal"
)

const sampleDocument = `apiVersion: v1
kind: Service
metadata:
  name: geoip
spec:
  selector: {name: geoip}
  ports: [{name: web, port: 8080, targetPort: 8080}]
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: geoip
spec:
  selector:
    matchLabels: {name: geoip}
  template:
    metadata:
      labels: {name: geoip}
    spec:
      containers:
        - name: geoip
          image: fissore/geoip-rs:latest
          env:
            - {name: GEOIP_LICENSE, value: "${GEOIP_LICENSE}"}
          ports: [{name: web, containerPort: 8080}]
---
apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: geoip
spec:
  rules:
    - host: ${GEOIP_DOMAIN}
      http:
        paths:
          - path: /
            pathType: Prefix
            backend:
              service: {name: geoip, port: {name: web}}
`

func writeDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDocument), 0o644))
	return path
}

func TestLintCommand(t *testing.T) {
	path := writeDocument(t)

	var stdout, stderr bytes.Buffer
	ctx := internal.WithStdout(context.Background(), &stdout)
	ctx = internal.WithStderr(ctx, &stderr)

	params, err := GetLintParams(GlobalSettings{}, nil, []string{path, "--", "GEOIP_LICENSE=key", "GEOIP_DOMAIN=geoip.example.com"})
	require.NoError(t, err)

	require.NoError(t, Lint(ctx, *params))
	require.Equal(t, "valid: 3 resource(s): 1 service(s), 1 workload(s), 1 route(s)\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestLintCommandReportsUnresolvedPlaceholders(t *testing.T) {
	path := writeDocument(t)

	var stdout, stderr bytes.Buffer
	ctx := internal.WithStdout(context.Background(), &stdout)
	ctx = internal.WithStderr(ctx, &stderr)

	params, err := GetLintParams(GlobalSettings{}, nil, []string{path})
	require.NoError(t, err)

	require.NoError(t, Lint(ctx, *params))
	require.Contains(t, stderr.String(), "unresolved placeholder ${GEOIP_LICENSE}")
	require.Contains(t, stderr.String(), "unresolved placeholder ${GEOIP_DOMAIN}")
}

func TestLintCommandValuesFromEnvironment(t *testing.T) {
	t.Setenv("GEOIP_LICENSE", "key")
	t.Setenv("GEOIP_DOMAIN", "geoip.example.com")

	path := writeDocument(t)

	var stdout, stderr bytes.Buffer
	ctx := internal.WithStdout(context.Background(), &stdout)
	ctx = internal.WithStderr(ctx, &stderr)

	params, err := GetLintParams(GlobalSettings{}, nil, []string{path})
	require.NoError(t, err)

	require.NoError(t, Lint(ctx, *params))
	require.Contains(t, stdout.String(), "valid: 3 resource(s)")
	require.Empty(t, stderr.String())
}

func TestLintCommandStrict(t *testing.T) {
	path := writeDocument(t)

	params, err := GetLintParams(GlobalSettings{}, nil, []string{"-strict", path})
	require.NoError(t, err)

	err = Lint(context.Background(), *params)
	require.ErrorContains(t, err, "unresolved placeholder ${GEOIP_LICENSE}")
}

func TestLintCommandFromStdin(t *testing.T) {
	var stdout bytes.Buffer
	ctx := internal.WithStdout(context.Background(), &stdout)
	ctx = internal.WithStderr(ctx, new(bytes.Buffer))

	params, err := GetLintParams(GlobalSettings{}, strings.NewReader(sampleDocument), []string{"--", "GEOIP_LICENSE=key", "GEOIP_DOMAIN=geoip.example.com"})
	require.NoError(t, err)

	require.NoError(t, Lint(ctx, *params))
	require.Contains(t, stdout.String(), "valid: 3 resource(s)")
}

func TestLintCommandRequiresSource(t *testing.T) {
	_, err := GetLintParams(GlobalSettings{}, nil, nil)
	require.ErrorContains(t, err, "descriptor path is required")
}

func TestRenderCommand(t *testing.T) {
	path := writeDocument(t)

	var stdout, stderr bytes.Buffer
	ctx := internal.WithStdout(context.Background(), &stdout)
	ctx = internal.WithStderr(ctx, &stderr)

	params, err := GetRenderParams(GlobalSettings{}, nil, []string{path, "--", "GEOIP_DOMAIN=geoip.example.com"})
	require.NoError(t, err)

	require.NoError(t, Render(ctx, *params))
	require.Contains(t, stdout.String(), "host: geoip.example.com")
	require.Contains(t, stderr.String(), "unresolved placeholder ${GEOIP_LICENSE}")
	require.NotContains(t, stderr.String(), "GEOIP_DOMAIN")
}

func TestGetApplyParams(t *testing.T) {
	t.Run("stack is required", func(t *testing.T) {
		_, err := GetApplyParams(GlobalSettings{}, nil, nil)
		require.ErrorContains(t, err, "stack is required")
	})

	t.Run("source is required", func(t *testing.T) {
		_, err := GetApplyParams(GlobalSettings{}, nil, []string{"geoip"})
		require.ErrorContains(t, err, "descriptor path is required")
	})

	t.Run("value pairs are cut from flag args", func(t *testing.T) {
		params, err := GetApplyParams(GlobalSettings{}, strings.NewReader(""), []string{"geoip", "--", "A=1", "B=2"})
		require.NoError(t, err)
		require.Equal(t, "geoip", params.Stack)
		require.Equal(t, []string{"A=1", "B=2"}, params.ValuePairs)
	})
}

func TestGetRollbackParams(t *testing.T) {
	_, err := GetRollbackParams(GlobalSettings{}, []string{"geoip"})
	require.ErrorContains(t, err, "revision is required")

	_, err = GetRollbackParams(GlobalSettings{}, []string{"geoip", "two"})
	require.ErrorContains(t, err, "revision must be an integer ID")

	params, err := GetRollbackParams(GlobalSettings{}, []string{"geoip", "2"})
	require.NoError(t, err)
	require.Equal(t, 2, params.RevisionID)
}
